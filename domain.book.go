package main

import "context"

// Book represents a book entity.
type Book struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
}

// BookPayload is the body of a book creation or update request. Pointer
// fields distinguish a field sent with its zero value from an absent one.
type BookPayload struct {
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	Available *bool   `json:"available"`
}

// BookStorage defines how the whole books collection is loaded and persisted.
type BookStorage interface {
	Load(ctx context.Context) []Book
	Save(ctx context.Context, books []Book) error
}
