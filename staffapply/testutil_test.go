package staffapply

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"net/http"
)

// DefaultTestConfig returns a config suitable for tests: a sqlite
// database in a temp dir and placeholder Discord credentials.
func DefaultTestConfig(t testing.TB) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "staffapply_test.sqlite3")
	cfg.DatabaseType = dbTypeSQLite
	cfg.Discord.Token = "test-token"
	cfg.Discord.ApplicationID = "test-app-id"
	cfg.API.Listen = "127.0.0.1:0"
	cfg.LogLevel.Set(slog.LevelError)
	cfg.DatabaseLogLevel.Set(slog.LevelError)
	cfg.Discord.LogLevel.Set(slog.LevelError)
	cfg.API.LogLevel.Set(slog.LevelError)
	return cfg
}

// newTestStore creates a migrated sqlite-backed Store in a temp dir.
func newTestStore(t testing.TB) Store {
	t.Helper()
	cfg := DefaultTestConfig(t)
	db, err := CreateDB(
		context.Background(),
		cfg.DatabaseType,
		cfg.Database,
		slog.Default().Handler(),
		cfg.DatabaseSlowThreshold,
	)
	require.NoError(t, err)
	return NewDatabase(db, slog.Default(), false)
}

// newTestBot creates a bot with a migrated test database and a mock
// Discord session.
func newTestBot(t testing.TB) (*StaffApply, *mockDiscordSession) {
	t.Helper()
	cfg := DefaultTestConfig(t)
	b, err := New(cfg)
	require.NoError(t, err)

	db, err := CreateDB(
		context.Background(),
		cfg.DatabaseType,
		cfg.Database,
		b.logHandler,
		cfg.DatabaseSlowThreshold,
	)
	require.NoError(t, err)
	b.db = db
	b.writeDB = NewDatabase(db, b.logger, false)

	session := &mockDiscordSession{}
	b.discord.session = session
	return b, session
}

type sentChannelMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

type roleGrant struct {
	guildID string
	userID  string
	roleID  string
}

// mockDiscordSession implements DiscordSessionHandler, recording
// outbound calls.
type mockDiscordSession struct {
	mu                   sync.Mutex
	channelMessages      []sentChannelMessage
	roleGrants           []roleGrant
	interactionResponses []*discordgo.InteractionResponse
	registeredCommands   []*discordgo.ApplicationCommand
	customStatus         string
	opened               bool
	closed               bool
}

func (m *mockDiscordSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *mockDiscordSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockDiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelMessages = append(
		m.channelMessages, sentChannelMessage{
			channelID: channelID,
			data:      &discordgo.MessageSend{Content: message},
		},
	)
	return &discordgo.Message{ChannelID: channelID, Content: message}, nil
}

func (m *mockDiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelMessages = append(
		m.channelMessages,
		sentChannelMessage{channelID: channelID, data: data},
	)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (m *mockDiscordSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registeredCommands = commands
	return commands, nil
}

func (m *mockDiscordSession) GuildMemberRoleAdd(
	guildID string,
	userID string,
	roleID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleGrants = append(
		m.roleGrants,
		roleGrant{guildID: guildID, userID: userID, roleID: roleID},
	)
	return nil
}

func (m *mockDiscordSession) UpdateCustomStatus(status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customStatus = status
	return nil
}

func (m *mockDiscordSession) AddHandler(any) func() {
	return func() {}
}

func (m *mockDiscordSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionResponses = append(m.interactionResponses, resp)
	return nil
}

func (m *mockDiscordSession) InteractionResponse(
	*discordgo.Interaction,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (m *mockDiscordSession) InteractionResponseEdit(
	*discordgo.Interaction,
	*discordgo.WebhookEdit,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (m *mockDiscordSession) SetHTTPClient(*http.Client) {}

func (m *mockDiscordSession) SetIdentify(discordgo.Identify) {}

func (m *mockDiscordSession) SetLogLevel(slog.Level) error { return nil }

func (m *mockDiscordSession) GatewayBot(...discordgo.RequestOption) (
	*discordgo.GatewayBotResponse,
	error,
) {
	return &discordgo.GatewayBotResponse{}, nil
}

// mockInteractionHandler implements InteractionHandler, recording
// responses for assertions.
type mockInteractionHandler struct {
	interaction *discordgo.InteractionCreate
	responses   []*discordgo.InteractionResponse
	edits       []*discordgo.WebhookEdit
}

func newMockHandler(i *discordgo.InteractionCreate) *mockInteractionHandler {
	return &mockInteractionHandler{interaction: i}
}

func (m *mockInteractionHandler) Respond(
	_ context.Context,
	r *discordgo.InteractionResponse,
) error {
	m.responses = append(m.responses, r)
	return nil
}

func (m *mockInteractionHandler) GetResponse(context.Context) (
	*discordgo.Message,
	error,
) {
	return &discordgo.Message{}, nil
}

func (m *mockInteractionHandler) Edit(
	_ context.Context,
	e *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.edits = append(m.edits, e)
	return &discordgo.Message{}, nil
}

func (m *mockInteractionHandler) GetInteraction() *discordgo.InteractionCreate {
	return m.interaction
}

func (m *mockInteractionHandler) Logger() *slog.Logger {
	return slog.Default()
}

// lastResponse returns the most recent recorded response, failing the
// test if none was recorded.
func (m *mockInteractionHandler) lastResponse(t testing.TB) *discordgo.InteractionResponse {
	t.Helper()
	require.NotEmpty(t, m.responses)
	return m.responses[len(m.responses)-1]
}

func adminMember(userID string) *discordgo.Member {
	return &discordgo.Member{
		User:        &discordgo.User{ID: userID, Username: "admin"},
		Permissions: discordgo.PermissionAdministrator,
	}
}

func newCommandInteraction(
	guildID string,
	name string,
	member *discordgo.Member,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + name,
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "channel-1",
			Member:    member,
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

// userOption builds a `user` command option along with the resolved
// user data Discord sends with it.
func userOption(i *discordgo.InteractionCreate, user *discordgo.User) {
	data := i.Data.(discordgo.ApplicationCommandInteractionData)
	data.Options = append(
		data.Options, &discordgo.ApplicationCommandInteractionDataOption{
			Name:  commandOptionUser,
			Type:  discordgo.ApplicationCommandOptionUser,
			Value: user.ID,
		},
	)
	data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
		Users: map[string]*discordgo.User{user.ID: user},
	}
	i.Data = data
}

func newComponentInteraction(
	guildID string,
	customID string,
	member *discordgo.Member,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + customID,
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   guildID,
			ChannelID: "channel-1",
			Member:    member,
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}

func newModalInteraction(
	guildID string,
	customID string,
	member *discordgo.Member,
	inputs map[string]string,
) *discordgo.InteractionCreate {
	components := make([]discordgo.MessageComponent, 0, len(inputs))
	for id, value := range inputs {
		components = append(
			components, &discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: id, Value: value},
				},
			},
		)
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + customID,
			Type:      discordgo.InteractionModalSubmit,
			GuildID:   guildID,
			ChannelID: "channel-1",
			Member:    member,
			Data: discordgo.ModalSubmitInteractionData{
				CustomID:   customID,
				Components: components,
			},
		},
	}
}
