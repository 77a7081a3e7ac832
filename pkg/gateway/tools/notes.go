package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

// Note is one saved user note. Owner is the user's email, or
// "anonymous" for unauthenticated sessions.
type Note struct {
	ID        string    `json:"id"`
	Owner     string    `json:"-"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoteStore persists notes per owner.
type NoteStore interface {
	Save(ctx context.Context, note Note) error
	List(ctx context.Context, owner string) ([]Note, error)
}

const anonymousOwner = "anonymous"

func noteOwner(user *auth.Context) string {
	if user.Authenticated() && user.Email != "" {
		return user.Email
	}
	return anonymousOwner
}

// RedisNoteStore keeps notes in a per-owner redis hash.
type RedisNoteStore struct {
	client *redis.Client
}

func NewRedisNoteStore(client *redis.Client) *RedisNoteStore {
	return &RedisNoteStore{client: client}
}

func noteKey(owner string) string {
	return "apsara:notes:" + owner
}

func (s *RedisNoteStore) Save(ctx context.Context, note Note) error {
	encoded, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	if err := s.client.HSet(ctx, noteKey(note.Owner), note.ID, encoded).Err(); err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

func (s *RedisNoteStore) List(ctx context.Context, owner string) ([]Note, error) {
	raw, err := s.client.HGetAll(ctx, noteKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes := make([]Note, 0, len(raw))
	for _, encoded := range raw {
		var note Note
		if err := json.Unmarshal([]byte(encoded), &note); err != nil {
			continue
		}
		note.Owner = owner
		notes = append(notes, note)
	}
	sortNotes(notes)
	return notes, nil
}

// MemoryNoteStore is the fallback when redis is not configured. Notes
// do not survive a restart.
type MemoryNoteStore struct {
	mu    sync.Mutex
	notes map[string][]Note
}

func NewMemoryNoteStore() *MemoryNoteStore {
	return &MemoryNoteStore{notes: make(map[string][]Note)}
}

func (s *MemoryNoteStore) Save(_ context.Context, note Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.Owner] = append(s.notes[note.Owner], note)
	return nil
}

func (s *MemoryNoteStore) List(_ context.Context, owner string) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := append([]Note(nil), s.notes[owner]...)
	sortNotes(notes)
	return notes, nil
}

func sortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
}

// SaveNoteHandler exposes note taking as the saveNote tool.
func SaveNoteHandler(store NoteStore) *Handler {
	return &Handler{
		Name:        "saveNote",
		Description: "Save a short note for the user to recall later.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {Type: genai.TypeString, Description: "The note contents."},
			},
			Required: []string{"text"},
		},
		Run: func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error) {
			text := stringArg(args, "text")
			if text == "" {
				return Outcome{}, fmt.Errorf("note text is required")
			}
			note := Note{
				ID:        uuid.NewString(),
				Owner:     noteOwner(user),
				Text:      text,
				CreatedAt: time.Now().UTC(),
			}
			if err := store.Save(ctx, note); err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"saved":  true,
				"noteId": note.ID,
			}}, nil
		},
	}
}

// ListNotesHandler exposes recall as the listNotes tool.
func ListNotesHandler(store NoteStore) *Handler {
	return &Handler{
		Name:        "listNotes",
		Description: "List the notes previously saved for the user.",
		Parameters:  &genai.Schema{Type: genai.TypeObject},
		Run: func(ctx context.Context, user *auth.Context, _ map[string]any) (Outcome, error) {
			notes, err := store.List(ctx, noteOwner(user))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"notes": notes,
				"count": len(notes),
			}}, nil
		},
	}
}
