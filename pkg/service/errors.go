package service

import "errors"

var (
	// ErrInvalidRecord indicates a malformed deal record was rejected at ingestion
	ErrInvalidRecord = errors.New("invalid deal record")
	// ErrDuplicateRecord indicates the record id already exists in its period
	ErrDuplicateRecord = errors.New("deal record already exists")

	// ErrInvalidMapping indicates a mapping whose stages don't fit its pipelines
	ErrInvalidMapping = errors.New("invalid stage mapping")
	// ErrDuplicateMapping indicates the canonical stage is already mapped
	ErrDuplicateMapping = errors.New("canonical stage already mapped")
	ErrMappingNotFound  = errors.New("mapping not found")

	ErrInvalidVersion   = errors.New("invalid mapping version")
	ErrDuplicateVersion = errors.New("mapping version already exists")
	ErrVersionNotFound  = errors.New("mapping version not found")

	ErrDealNotFound = errors.New("deal not found")
	// ErrInconsistentTimeline indicates recorded transitions that can't be projected
	ErrInconsistentTimeline = errors.New("inconsistent timeline")
)
