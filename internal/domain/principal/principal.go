package principal

import (
	"github.com/google/uuid"
)

// Kind distinguishes internal users from external parties.
type Kind string

const (
	KindUser     Kind = "user"
	KindExternal Kind = "external"
)

func (k Kind) Valid() bool {
	return k == KindUser || k == KindExternal
}

// Ref identifies a principal that can send or receive messages.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Kind Kind      `json:"kind"`
}

func User(id uuid.UUID) Ref {
	return Ref{ID: id, Kind: KindUser}
}

func External(id uuid.UUID) Ref {
	return Ref{ID: id, Kind: KindExternal}
}

func (r Ref) IsZero() bool {
	return r.ID == uuid.Nil
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// Principal is a Ref together with its display metadata.
type Principal struct {
	Ref
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DefaultName is shown when the directory has no profile for a principal.
func DefaultName(kind Kind) string {
	if kind == KindExternal {
		return "Client"
	}
	return "User"
}
