// Package contracts provides the core message types for the redrive messaging library.
//
// This package defines the envelope that flows through the consumer:
//   - Message: Base interface for all messages
//   - DomainEvent: Represents something that has happened in a domain
//   - Command: Represents an action requested from a service
//
// Messages are serialized to a versioned JSON envelope so that a message can be
// republished (retry or dead-letter) byte-identical to how it was received.
package contracts
