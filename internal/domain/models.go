package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OwnerKind tags which actor an Owner refers to.
type OwnerKind uint8

const (
	ownerNone OwnerKind = iota
	OwnerUser
	OwnerGuest
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerUser:
		return "user"
	case OwnerGuest:
		return "guest"
	default:
		return ""
	}
}

// Owner identifies who an attempt or leaderboard entry belongs to: a registered
// user or an anonymous guest, never both. The zero value owns nothing.
type Owner struct {
	kind OwnerKind
	id   int64
}

func UserOwner(id int64) Owner { return Owner{kind: OwnerUser, id: id} }
func GuestOwner(id int64) Owner { return Owner{kind: OwnerGuest, id: id} }

// OwnerOf rebuilds an owner from its stored kind and id.
func OwnerOf(kind string, id int64) (Owner, error) {
	switch kind {
	case "user":
		return UserOwner(id), nil
	case "guest":
		return GuestOwner(id), nil
	}
	return Owner{}, fmt.Errorf("owner kind %q: %w", kind, ErrInvalidOwner)
}

// ParseOwner reads the "user:12" / "guest:7" form used by the HTTP layer.
func ParseOwner(raw string) (Owner, error) {
	kind, id, ok := strings.Cut(raw, ":")
	if !ok {
		return Owner{}, ErrInvalidOwner
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Owner{}, ErrInvalidOwner
	}
	return OwnerOf(kind, n)
}

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() int64 { return o.id }
func (o Owner) Valid() bool { return o.kind != ownerNone && o.id > 0 }

// UserID returns the user id when the owner is a registered user.
func (o Owner) UserID() (int64, bool) {
	return o.id, o.kind == OwnerUser
}

// GuestID returns the guest id when the owner is a guest.
func (o Owner) GuestID() (int64, bool) {
	return o.id, o.kind == OwnerGuest
}

// Less orders users before guests, then by ascending id.
func (o Owner) Less(other Owner) bool {
	if o.kind != other.kind {
		return o.kind < other.kind
	}
	return o.id < other.id
}

func (o Owner) String() string {
	if !o.Valid() {
		return ""
	}
	return o.kind.String() + ":" + strconv.FormatInt(o.id, 10)
}

func (o Owner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Owner) UnmarshalText(b []byte) error {
	parsed, err := ParseOwner(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserBanned    UserStatus = "banned"
)

// User is the per-user aggregate the ranking projections are derived from.
type User struct {
	ID             int64
	Username       string
	Status         UserStatus
	Points         int
	StreakDays     int
	LastStreakDate *time.Time
	Country        string
	CountryName    string
	GlobalRank     *int
	CountryRank    *int
}

// Guest is an anonymous player; it carries no aggregate fields.
type Guest struct {
	ID          int64
	SessionID   string
	DisplayName string
}

// UserRank is one row of the batch rank rebuild.
type UserRank struct {
	UserID      int64
	GlobalRank  int
	CountryRank *int
}

// Option is one answer choice of a question.
type Option struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a catalog question with its answer options.
type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option looks up an option of this question.
func (q Question) Option(id int64) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// Quiz is the catalog snapshot the core grades against.
type Quiz struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	CategoryID   *int64     `json:"categoryId,omitempty"`
	CategoryName string     `json:"categoryName,omitempty"`
	TimeLimit    *int       `json:"timeLimit,omitempty"` // seconds
	MaxQuestions int        `json:"maxQuestions"`
	Questions    []Question `json:"questions"`
}

// Question looks up a question of this quiz.
func (q Quiz) Question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// QuestionCount is the number of questions a player is served.
func (q Quiz) QuestionCount() int {
	n := len(q.Questions)
	if q.MaxQuestions > 0 && q.MaxQuestions < n {
		return q.MaxQuestions
	}
	return n
}
