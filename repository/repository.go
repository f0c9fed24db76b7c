// Package repository holds the MySQL-backed stores behind the storefront API.
package repository

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already exists")
	ErrInvalidStatus = errors.New("invalid status transition")
)
