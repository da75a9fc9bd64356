package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

// Verdict is the outcome of validating a custom alias.
type Verdict int

const (
	Accepted Verdict = iota
	Reserved
	AlreadyExists
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Reserved:
		return "reserved"
	case AlreadyExists:
		return "already_exists"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var defaultReserved = []string{
	"admin", "api", "user", "url", "urls", "suborg", "suborgs",
	"login", "logout", "signup", "register", "auth", "guest",
	"ping", "health", "static", "assets", "dashboard", "settings",
	"about", "help",
}

// AliasValidator checks custom aliases against the charset, the reserved
// denylist and the store. The denylist is fixed at construction.
type AliasValidator struct {
	storage  Storage
	reserved map[string]struct{}
}

func NewAliasValidator(storage Storage, extraReserved []string) *AliasValidator {
	reserved := make(map[string]struct{}, len(defaultReserved)+len(extraReserved))
	for _, w := range defaultReserved {
		reserved[w] = struct{}{}
	}
	for _, w := range extraReserved {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			reserved[w] = struct{}{}
		}
	}

	return &AliasValidator{storage: storage, reserved: reserved}
}

// IsReserved reports whether word is on the denylist, ignoring case.
func (v *AliasValidator) IsReserved(word string) bool {
	_, ok := v.reserved[strings.ToLower(word)]
	return ok
}

// Validate classifies candidate as an alias inside scope. The returned error
// is non-nil for every verdict but Accepted and carries the matching kind.
func (v *AliasValidator) Validate(ctx context.Context, candidate string, scope models.Scope) (Verdict, error) {
	if !aliasPattern.MatchString(candidate) {
		return Invalid, internalerrors.ErrInvalidAlias
	}
	if v.IsReserved(candidate) {
		return Reserved, internalerrors.ErrReserved
	}

	exists, err := v.storage.ExistsShort(ctx, scope.Endpoint(candidate))
	if err != nil {
		return Invalid, internalerrors.Wrap(internalerrors.KindStorage, internalerrors.ErrStorage.Reason, err)
	}
	if exists {
		return AlreadyExists, internalerrors.ErrAlreadyExists
	}

	return Accepted, nil
}

// ValidateCategory applies the alias charset and denylist to a category name.
func (v *AliasValidator) ValidateCategory(name string) error {
	if !aliasPattern.MatchString(name) {
		return internalerrors.New(internalerrors.KindInvalidAlias, "category name may contain only letters, digits, '-' and '_' (1-64 chars)")
	}
	if v.IsReserved(name) {
		return internalerrors.New(internalerrors.KindReserved, "the requested category name is reserved")
	}
	return nil
}
