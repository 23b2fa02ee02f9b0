// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

// TitleMaxLen caps the server title length.
const TitleMaxLen = 70

// Settings are the server-wide options. The password hashes are PHC-encoded
// argon2id verifiers; the main one guards the control surfaces, the output
// one the per-output mixing surface.
type Settings struct {
	Title              *string `json:"title,omitempty"`
	PasswordHash       *string `json:"password_hash,omitempty"`
	PasswordOutputHash *string `json:"password_output_hash,omitempty"`
	DeleteConfirmation *bool   `json:"delete_confirmation,omitempty"`
	EnableConfirmation *bool   `json:"enable_confirmation,omitempty"`
}

// Clone copies the settings.
func (s Settings) Clone() Settings {
	out := s
	if s.Title != nil {
		t := *s.Title
		out.Title = &t
	}
	if s.PasswordHash != nil {
		h := *s.PasswordHash
		out.PasswordHash = &h
	}
	if s.PasswordOutputHash != nil {
		h := *s.PasswordOutputHash
		out.PasswordOutputHash = &h
	}
	out.DeleteConfirmation = cloneBool(s.DeleteConfirmation)
	out.EnableConfirmation = cloneBool(s.EnableConfirmation)
	return out
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// DefaultSettings returns the settings used when no snapshot exists yet.
func DefaultSettings() Settings {
	confirmDelete, confirmEnable := true, true
	return Settings{DeleteConfirmation: &confirmDelete, EnableConfirmation: &confirmEnable}
}

// ApplySpec overwrites the importable settings fields, leaving the password
// hashes untouched.
func (s *Settings) ApplySpec(title *string, deleteConfirmation, enableConfirmation *bool) {
	s.Title = title
	s.DeleteConfirmation = deleteConfirmation
	s.EnableConfirmation = enableConfirmation
}

// PasswordKind selects which of the two password hashes an operation targets.
type PasswordKind string

const (
	// PasswordMain guards /api and /api-dashboard.
	PasswordMain PasswordKind = "MAIN"
	// PasswordOutput guards /api-mix.
	PasswordOutput PasswordKind = "OUTPUT"
)

// Hash returns a pointer to the hash slot selected by kind.
func (s *Settings) Hash(kind PasswordKind) **string {
	if kind == PasswordOutput {
		return &s.PasswordOutputHash
	}
	return &s.PasswordHash
}
