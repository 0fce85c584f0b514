// README: Telegram Bot API sender; chat ids come from the telegram_chats table.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wasil/internal/types"
)

const sendTimeout = 5 * time.Second

type Telegram struct {
	token  string
	db     *pgxpool.Pool
	client *http.Client
}

func NewTelegram(token string, db *pgxpool.Pool) *Telegram {
	return &Telegram{
		token:  token,
		db:     db,
		client: &http.Client{Timeout: sendTimeout},
	}
}

func (t *Telegram) Send(ctx context.Context, role Role, refID types.ID, text string) error {
	chatID, err := t.chatID(ctx, role, refID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}
	return nil
}

func (t *Telegram) chatID(ctx context.Context, role Role, refID types.ID) (int64, error) {
	row := t.db.QueryRow(ctx, `
		SELECT chat_id FROM telegram_chats WHERE role = $1 AND ref_id = $2`,
		string(role), string(refID),
	)
	var chatID int64
	err := row.Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no %s chat registered for %s", role, refID)
	}
	return chatID, err
}
