package postgres

import (
	"context"

	"gift-platform/internal/models"
)

const creatorColumns = `id, username, display_name, widget_secret_token, telegram_chat_id, created_at, updated_at`

func (d *DB) CreatorByID(ctx context.Context, id int64) (*models.Creator, error) {
	var c models.Creator
	err := d.db.GetContext(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *DB) CreatorByUsername(ctx context.Context, username string) (*models.Creator, error) {
	var c models.Creator
	err := d.db.GetContext(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE username = $1`, username)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *DB) CreatorByWidgetToken(ctx context.Context, token string) (*models.Creator, error) {
	var c models.Creator
	err := d.db.GetContext(ctx, &c, `SELECT `+creatorColumns+` FROM creators WHERE widget_secret_token = $1`, token)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
