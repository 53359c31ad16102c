package staffapply

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
	"strings"
)

const (
	columnStatsTotalApplications    = "total_applications"
	columnStatsAcceptedApplications = "accepted_applications"
	columnStatsRejectedApplications = "rejected_applications"
	columnStatsBlockedUsers         = "blocked_users"

	columnApplicationLastApplicationTime = "last_application_time"
	columnApplicationLastStatus          = "last_status"
)

// Setup wizard stages, stored in [TempSettings.Stage]. Each stage names the
// field the operator is expected to provide next.
const (
	SetupStageAdminChannel = "admin_channel"
	SetupStageAdminRoles   = "admin_roles"
	SetupStageStaffRoles   = "staff_roles"
	SetupStageLogChannel   = "log_channel"
	SetupStageConfirm      = "confirm"
)

// Application decision statuses, stored in [Application.LastStatus] and
// shown to moderators by check-user.
const (
	ApplicationStatusAccepted = "مقبول"
	ApplicationStatusRejected = "مرفوض"
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// StringList is a string slice stored as a single JSON-encoded column,
// implementing the SQL Scanner and Valuer interfaces for GORM.
type StringList []string

// Scan implements the sql.Scanner interface.
func (s *StringList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	default:
		return fmt.Errorf("unexpected type for StringList: %T", value)
	}
}

// Value implements the driver.Valuer interface.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringList) parse(value string) error {
	if value == "" {
		*s = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return err
	}
	*s = items
	return nil
}

// GormDataType is used by GORM to determine the default data type for a field.
func (StringList) GormDataType() string {
	return "string"
}

// Contains reports whether the list includes the given item.
func (s StringList) Contains(item string) bool {
	for _, v := range s {
		if v == item {
			return true
		}
	}
	return false
}

// parseStringList splits a comma-separated modal input into a StringList,
// dropping empty segments.
func parseStringList(input string) StringList {
	var items StringList
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

// ServerSettings is the committed per-guild configuration of the staff
// application workflow. Absent settings mean the guild has not completed
// setup, and management commands fall back to administrator-only.
type ServerSettings struct {
	ModelUintID
	ModelUnixTime
	GuildID string `gorm:"uniqueIndex" json:"guild_id"`

	// Staffroom is the channel submitted applications are posted to
	// for review.
	Staffroom string `json:"staffroom"`

	// Roles lists role IDs permitted to manage the application system.
	Roles StringList `json:"roles"`

	// StaffIDs lists role IDs granted to a user when their application
	// is accepted.
	StaffIDs StringList `json:"staff_ids"`

	// LogChannelID is the channel audit log embeds are sent to.
	// Empty disables audit logging for the guild.
	LogChannelID string `json:"log_channel_id"`
}

// TempSettings is the setup wizard's per-guild scratch row. It mirrors
// ServerSettings, with Stage tracking which field the operator provides
// next. Deleted when setup is committed; abandoned rows are overwritten
// by the next wizard run.
type TempSettings struct {
	ModelUintID
	ModelUnixTime
	GuildID      string     `gorm:"uniqueIndex" json:"guild_id"`
	Staffroom    string     `json:"staffroom"`
	Roles        StringList `json:"roles"`
	StaffIDs     StringList `json:"staff_ids"`
	LogChannelID string     `json:"log_channel_id"`
	Stage        string     `json:"stage"`
}

// Stats holds per-guild aggregate counters. Counters are monotonic and
// only ever incremented, atomically at the storage layer.
type Stats struct {
	ModelUintID
	ModelUnixTime
	GuildID              string `gorm:"uniqueIndex" json:"guild_id"`
	TotalApplications    int64  `json:"total_applications"`
	AcceptedApplications int64  `json:"accepted_applications"`
	RejectedApplications int64  `json:"rejected_applications"`
	BlockedUsers         int64  `json:"blocked_users"`
}

// Application is a user's global application record. It's keyed by user ID
// only: cooldown and history span every guild the bot serves.
type Application struct {
	ModelUnixTime
	UserID string `gorm:"primaryKey" json:"user_id"`

	// LastApplicationTime is the unix ms timestamp of the most recent
	// submission. Zero means the cooldown gate is open.
	LastApplicationTime int64 `json:"last_application_time"`

	// LastStatus is the most recent accept/reject decision, empty if
	// no decision has been made yet.
	LastStatus string `json:"last_status"`
}

// ApplicationEntry is one submitted application form. Entries are
// append-only and never deleted.
type ApplicationEntry struct {
	ModelUintID
	ModelUnixTime
	UserID      string `gorm:"index" json:"user_id"`
	GuildID     string `json:"guild_id"`
	SubmittedAt int64  `json:"submitted_at"`
	Q1          string `json:"q1"`
	Q2          string `json:"q2"`
	Q3          string `json:"q3"`
	Q4          string `json:"q4"`
	Q5          string `json:"q5"`
}

// Blocklist marks a user as permanently barred from submitting
// applications in a guild. Row existence is membership.
type Blocklist struct {
	ModelUintID
	ModelUnixTime
	GuildID string `gorm:"index:idx_blocklist_guild_user" json:"guild_id"`
	UserID  string `gorm:"index:idx_blocklist_guild_user" json:"user_id"`
}

// InteractionLog records incoming Discord interactions
type InteractionLog struct {
	ModelUintID
	ModelUnixTime
	InteractionID string `json:"interaction_id" gorm:"index"`
	Type          string `json:"type"`
	UserID        string `json:"user_id" gorm:"index"`
	Username      string `json:"username"`
	GuildID       string `json:"guild_id"`
	ChannelID     string `json:"channel_id"`
	Content       string `json:"content"`
}

// NewInteractionLog creates a new InteractionLog instance from a
// Discord interaction.
func NewInteractionLog(
	i *discordgo.InteractionCreate,
	u *discordgo.User,
) *InteractionLog {
	payload, _ := json.Marshal(i.Interaction)
	rv := &InteractionLog{
		InteractionID: i.ID,
		Type:          i.Type.String(),
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		Content:       string(payload),
	}
	if u != nil {
		rv.UserID = u.ID
		rv.Username = u.Username
	}
	return rv
}
