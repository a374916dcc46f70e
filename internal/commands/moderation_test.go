package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/poppy-bot/poppy/internal/store"
)

type mockWarningStore struct {
	addWarningFunc    func(ctx context.Context, w *store.Warning) error
	listWarningsFunc  func(ctx context.Context, guildID, userID string) ([]store.Warning, error)
	clearWarningsFunc func(ctx context.Context, guildID, userID string) (int, error)
}

func (m *mockWarningStore) AddWarning(ctx context.Context, w *store.Warning) error {
	return m.addWarningFunc(ctx, w)
}

func (m *mockWarningStore) ListWarnings(ctx context.Context, guildID, userID string) ([]store.Warning, error) {
	return m.listWarningsFunc(ctx, guildID, userID)
}

func (m *mockWarningStore) ClearWarnings(ctx context.Context, guildID, userID string) (int, error) {
	return m.clearWarningsFunc(ctx, guildID, userID)
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		token    string
		expected string
		ok       bool
	}{
		{token: "<@123456>", expected: "123456", ok: true},
		{token: "<@!123456>", expected: "123456", ok: true},
		{token: "@someone"},
		{token: "<@abc>"},
		{token: "123456"},
		{token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			id, ok := parseMention(tt.token)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%t, got %t.", tt.ok, ok)
			}
			if id != tt.expected {
				t.Errorf("Expected ID %q, got %q.", tt.expected, id)
			}
		})
	}
}

func TestIsModerator(t *testing.T) {
	mods := []string{"mod-1", "mod-2"}

	if !isModerator(mods, "mod-2") {
		t.Error("Expected mod-2 to be a moderator.")
	}
	if isModerator(mods, "user-1") {
		t.Error("Expected user-1 not to be a moderator.")
	}
	if isModerator(nil, "mod-1") {
		t.Error("Expected empty list to reject everyone.")
	}
}

func TestWarnMember(t *testing.T) {
	mods := []string{"user-1"}

	t.Run("records a warning", func(t *testing.T) {
		var recorded *store.Warning
		warnings := &mockWarningStore{
			addWarningFunc: func(_ context.Context, w *store.Warning) error {
				recorded = w
				return nil
			},
			listWarningsFunc: func(_ context.Context, _, _ string) ([]store.Warning, error) {
				return []store.Warning{{}, {}}, nil
			},
		}

		response, err := warnMember(context.Background(), warnings, mods, testInput(t, ".warn <@555> spamming links"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}

		if recorded == nil {
			t.Fatal("Warning was not stored.")
		}
		if recorded.GuildID != "guild-1" || recorded.UserID != "555" || recorded.ModeratorID != "user-1" {
			t.Errorf("Unexpected warning record: %#v.", recorded)
		}
		if recorded.Reason != "spamming links" {
			t.Errorf("Unexpected reason: %s.", recorded.Reason)
		}

		text := responseText(t, response)
		if !strings.Contains(text, "<@555>") || !strings.Contains(text, "#2") {
			t.Errorf("Unexpected confirmation: %s.", text)
		}
	})

	t.Run("defaults the reason", func(t *testing.T) {
		var recorded *store.Warning
		warnings := &mockWarningStore{
			addWarningFunc: func(_ context.Context, w *store.Warning) error {
				recorded = w
				return nil
			},
			listWarningsFunc: func(_ context.Context, _, _ string) ([]store.Warning, error) {
				return []store.Warning{{}}, nil
			},
		}

		_, err := warnMember(context.Background(), warnings, mods, testInput(t, ".warn <@555>"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if recorded == nil || recorded.Reason != "No reason given" {
			t.Errorf("Expected default reason, got %#v.", recorded)
		}
	})

	t.Run("rejects non-moderator", func(t *testing.T) {
		warnings := &mockWarningStore{
			addWarningFunc: func(_ context.Context, _ *store.Warning) error {
				t.Error("AddWarning should not be called.")
				return nil
			},
		}

		response, err := warnMember(context.Background(), warnings, []string{"someone-else"}, testInput(t, ".warn <@555> reason"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "moderators") {
			t.Errorf("Expected rejection, got %s.", responseText(t, response))
		}
	})

	t.Run("requires a mention", func(t *testing.T) {
		response, err := warnMember(context.Background(), &mockWarningStore{}, mods, testInput(t, ".warn somebody"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "mention") {
			t.Errorf("Expected mention hint, got %s.", responseText(t, response))
		}
	})
}

func TestListMemberWarnings(t *testing.T) {
	mods := []string{"user-1"}

	t.Run("clean slate", func(t *testing.T) {
		warnings := &mockWarningStore{
			listWarningsFunc: func(_ context.Context, guildID, userID string) ([]store.Warning, error) {
				if guildID != "guild-1" || userID != "555" {
					t.Errorf("Unexpected lookup: %s/%s.", guildID, userID)
				}
				return nil, nil
			},
		}

		response, err := listMemberWarnings(context.Background(), warnings, mods, testInput(t, ".warnings <@555>"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "clean slate") {
			t.Errorf("Unexpected response: %s.", responseText(t, response))
		}
	})

	t.Run("lists warnings as embed", func(t *testing.T) {
		warnings := &mockWarningStore{
			listWarningsFunc: func(_ context.Context, _, _ string) ([]store.Warning, error) {
				return []store.Warning{
					{Reason: "spam", ModeratorID: "mod-9"},
				}, nil
			},
		}

		response, err := listMemberWarnings(context.Background(), warnings, mods, testInput(t, ".warnings <@555>"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if response == nil {
			t.Fatal("Response is nil.")
		}
		if _, ok := response.Content.(string); ok {
			t.Errorf("Expected an embed response, got string: %#v.", response.Content)
		}
	})
}

func TestClearMemberWarnings(t *testing.T) {
	warnings := &mockWarningStore{
		clearWarningsFunc: func(_ context.Context, _, _ string) (int, error) {
			return 3, nil
		},
	}

	response, err := clearMemberWarnings(context.Background(), warnings, []string{"user-1"}, testInput(t, ".clearwarnings <@555>"))
	if err != nil {
		t.Fatalf("Unexpected error: %s.", err)
	}
	text := responseText(t, response)
	if !strings.Contains(text, "3 warning") || !strings.Contains(text, "<@555>") {
		t.Errorf("Unexpected response: %s.", text)
	}
}
