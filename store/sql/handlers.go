package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// accountHandlers keys records by profile id. Profile ids are undashed hex
// and parse as uuids; anything else maps to uuid.Nil and is looked up by the
// "id" identifier instead.
func accountHandlers() repository.ModelHandlers[*accountRecord] {
	return repository.ModelHandlers[*accountRecord]{
		NewRecord: func() *accountRecord {
			return &accountRecord{}
		},
		GetID: func(record *accountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *accountRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = strings.ReplaceAll(id.String(), "-", "")
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accountRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
