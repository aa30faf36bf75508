package repo

import (
	"context"
	"database/sql"

	"github.com/botdock/botdock/internal/model"
	"github.com/botdock/botdock/internal/pkg/dbutil"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

type ChatbotRepo struct {
	db *sql.DB
}

func NewChatbotRepo(db *sql.DB) *ChatbotRepo {
	return &ChatbotRepo{db: db}
}

const chatbotColumns = `id, org_id, name, status, system_prompt, model_family, model, temperature, max_tokens, ctime, mtime`

func (r *ChatbotRepo) Create(ctx context.Context, bot *model.Chatbot) error {
	const query = `
		INSERT INTO chatbots (` + chatbotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		bot.ID, bot.OrgID, bot.Name, bot.Status, bot.SystemPrompt,
		bot.ModelFamily, bot.Model, bot.Temperature, bot.MaxTokens,
		bot.Ctime, bot.Mtime,
	)
	if dbutil.IsConflict(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *ChatbotRepo) Get(ctx context.Context, id string) (*model.Chatbot, error) {
	const query = `SELECT ` + chatbotColumns + ` FROM chatbots WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	var bot model.Chatbot
	err := row.Scan(
		&bot.ID, &bot.OrgID, &bot.Name, &bot.Status, &bot.SystemPrompt,
		&bot.ModelFamily, &bot.Model, &bot.Temperature, &bot.MaxTokens,
		&bot.Ctime, &bot.Mtime,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *ChatbotRepo) Update(ctx context.Context, bot *model.Chatbot) error {
	const query = `
		UPDATE chatbots SET
			name = $2, status = $3, system_prompt = $4, model_family = $5,
			model = $6, temperature = $7, max_tokens = $8, mtime = $9
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		bot.ID, bot.Name, bot.Status, bot.SystemPrompt, bot.ModelFamily,
		bot.Model, bot.Temperature, bot.MaxTokens, bot.Mtime,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *ChatbotRepo) ListByOrg(ctx context.Context, orgID string) ([]model.Chatbot, error) {
	const query = `SELECT ` + chatbotColumns + ` FROM chatbots WHERE org_id = $1 ORDER BY ctime DESC`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bots []model.Chatbot
	for rows.Next() {
		var bot model.Chatbot
		if err := rows.Scan(
			&bot.ID, &bot.OrgID, &bot.Name, &bot.Status, &bot.SystemPrompt,
			&bot.ModelFamily, &bot.Model, &bot.Temperature, &bot.MaxTokens,
			&bot.Ctime, &bot.Mtime,
		); err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}
