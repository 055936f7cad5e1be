// Package catalog is the read-only view over the owner's record items.
// Items are referenced by stable ids from requests and grants; their payloads
// live with an external collaborator and are never stored here.
package catalog

import (
	id "medvault/pkg/domain"
)

// Item identifies one shareable unit of the owner's health data.
// Immutable once created.
type Item struct {
	ID       id.ItemID
	Name     string
	Category id.ItemCategory
	Source   id.ItemSource
}
