/*
Package characters reads and writes the user's character records in the remote
record store.

Each user owns a list of {name, color} records plus a "last used" slot.
Character names are globally unique across all users, enforced through a
separate name-reservation record checked before every create. Every operation
returns the uniform result contract from the errs package.
*/
package characters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"blobparty/internal/app/auth"
	"blobparty/internal/app/wire"
	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
)

const (
	// collectionCharacters holds per-user records: the character list and the
	// last-used slot.
	collectionCharacters = "characters"

	// collectionNames is the global collection of name reservations; the key
	// is the lowercased character name.
	collectionNames = "names"

	// keyList is the per-user key holding the character list.
	keyList = "list"

	// keyLast is the per-user key holding the last-used character.
	keyLast = "last"
)

// Record is one stored character. Color is persisted in its 3-component wire
// form; alpha is never stored.
type Record struct {
	Name  string   `json:"name"`
	Color wire.RGB `json:"color"`
}

// reservation is the global record claiming a character name for one user.
type reservation struct {
	Owner string `json:"owner"`
}

// Storage is the slice of the record store transport the Store depends on.
type Storage interface {
	// ReadObject fetches one record; an absent record returns (nil, nil).
	ReadObject(ctx context.Context, token string, collection string, key string) (json.RawMessage, *errs.CustomError)

	// WriteObject creates or overwrites one record.
	WriteObject(ctx context.Context, token string, collection string, key string, value any) *errs.CustomError

	// DeleteObject removes one record; deleting an absent record succeeds.
	DeleteObject(ctx context.Context, token string, collection string, key string) *errs.CustomError
}

// Store is the character record store client.
type Store struct {
	// storage is the remote record store transport.
	storage Storage

	// structured logger with component context.
	logger zerolog.Logger
}

// NewStore constructs and returns a new Store instance.
func NewStore(storage Storage) *Store {
	storeLogger := logx.Logger().With().Str("component", "CharacterStore").Logger()

	return &Store{
		storage: storage,
		logger:  storeLogger,
	}
}

// nameKey is the reservation key for a character name. Reservations are
// case-insensitive.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// List returns the user's stored characters. A user with no stored characters
// gets an empty list, not an error.
func (s *Store) List(ctx context.Context, session *auth.Session) ([]Record, *errs.CustomError) {
	if session.Expired() {
		return nil, errs.NewError(errs.ErrUnauthenticated)
	}

	return s.readList(ctx, session)
}

// Create reserves the character name globally and appends the record to the
// user's list. When the name is already reserved it fails ErrNameUnavailable
// without mutating the list.
func (s *Store) Create(ctx context.Context, session *auth.Session, name string, color wire.RGB) *errs.CustomError {
	if session.Expired() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	raw, customErr := s.storage.ReadObject(ctx, session.Token, collectionNames, nameKey(name))
	if customErr != nil {
		return customErr
	}
	if raw != nil {
		s.logger.Info().Str("name", name).Msg("Character name already reserved")
		return errs.NewError(errs.ErrNameUnavailable, name)
	}

	list, customErr := s.readList(ctx, session)
	if customErr != nil {
		return customErr
	}

	// Reserve first: a crash between the two writes leaves a claimed name,
	// never a duplicate.
	claim := reservation{Owner: session.UserID}
	if customErr := s.storage.WriteObject(ctx, session.Token, collectionNames, nameKey(name), claim); customErr != nil {
		return customErr
	}

	list = append(list, Record{Name: name, Color: color})
	if customErr := s.writeList(ctx, session, list); customErr != nil {
		return customErr
	}

	s.logger.Info().Str("name", name).Int("total", len(list)).Msg("Character created")
	return nil
}

// Update replaces the color of an existing character. It fails ErrNotFound
// when the user owns no character with that name.
func (s *Store) Update(ctx context.Context, session *auth.Session, name string, color wire.RGB) *errs.CustomError {
	if session.Expired() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	list, customErr := s.readList(ctx, session)
	if customErr != nil {
		return customErr
	}

	for i := range list {
		if list[i].Name == name {
			list[i].Color = color
			return s.writeList(ctx, session, list)
		}
	}

	return errs.NewError(errs.ErrNotFound, name)
}

// Delete removes the character at the given list index and releases its name
// reservation. It fails ErrIndexOutOfRange when index is not in [0, len).
func (s *Store) Delete(ctx context.Context, session *auth.Session, index int) *errs.CustomError {
	if session.Expired() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	list, customErr := s.readList(ctx, session)
	if customErr != nil {
		return customErr
	}

	if index < 0 || index >= len(list) {
		return errs.NewError(errs.ErrIndexOutOfRange, index)
	}

	removed := list[index]
	list = append(list[:index], list[index+1:]...)

	if customErr := s.writeList(ctx, session, list); customErr != nil {
		return customErr
	}

	// Release the reservation so the name becomes claimable again. The list is
	// already consistent, so a failure here only leaks the claim.
	if customErr := s.storage.DeleteObject(ctx, session.Token, collectionNames, nameKey(removed.Name)); customErr != nil {
		s.logger.Warn().
			Str("name", removed.Name).
			Int("code", customErr.Code).
			Msg("Failed to release name reservation")
	}

	s.logger.Info().Str("name", removed.Name).Int("total", len(list)).Msg("Character deleted")
	return nil
}

// Last returns the last-used character, or nil when the slot was never set.
func (s *Store) Last(ctx context.Context, session *auth.Session) (*Record, *errs.CustomError) {
	if session.Expired() {
		return nil, errs.NewError(errs.ErrUnauthenticated)
	}

	raw, customErr := s.storage.ReadObject(ctx, session.Token, collectionCharacters, keyLast)
	if customErr != nil {
		return nil, customErr
	}
	if raw == nil {
		return nil, nil
	}

	record := &Record{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, errs.NewError(errs.ErrMalformedPayload, err.Error())
	}

	return record, nil
}

// StoreLast overwrites the last-used character slot.
func (s *Store) StoreLast(ctx context.Context, session *auth.Session, name string, color wire.RGB) *errs.CustomError {
	if session.Expired() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	return s.storage.WriteObject(ctx, session.Token, collectionCharacters, keyLast, Record{
		Name:  name,
		Color: color,
	})
}

// readList fetches and parses the user's character list.
func (s *Store) readList(ctx context.Context, session *auth.Session) ([]Record, *errs.CustomError) {
	raw, customErr := s.storage.ReadObject(ctx, session.Token, collectionCharacters, keyList)
	if customErr != nil {
		return nil, customErr
	}
	if raw == nil {
		return []Record{}, nil
	}

	var list []Record
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errs.NewError(errs.ErrMalformedPayload, err.Error())
	}

	return list, nil
}

// writeList persists the user's character list.
func (s *Store) writeList(ctx context.Context, session *auth.Session, list []Record) *errs.CustomError {
	return s.storage.WriteObject(ctx, session.Token, collectionCharacters, keyList, list)
}
