package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the service needs.  Statements are
// idempotent so Migrate can run on each start when DB_AUTO_MIGRATE is
// set.  uq_conversation_key is the storage-level guard for the
// conversation dedup invariant: listing_key is 0 for conversations
// without a listing because MySQL unique keys ignore NULLs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(120) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'USER',
		credits BIGINT NOT NULL DEFAULT 0,
		email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email),
		CONSTRAINT chk_users_credits CHECK (credits >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS listings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT UNSIGNED NOT NULL,
		team_id BIGINT UNSIGNED NOT NULL,
		game_date DATE NOT NULL,
		kind ENUM('HAVE','WANT') NOT NULL,
		section VARCHAR(32) NOT NULL DEFAULT '',
		seat_row VARCHAR(16) NOT NULL DEFAULT '',
		seat VARCHAR(16) NOT NULL DEFAULT '',
		zone VARCHAR(64) NOT NULL DEFAULT '',
		want_zones JSON NOT NULL,
		want_sections JSON NOT NULL,
		face_value_cents BIGINT NOT NULL DEFAULT 0,
		status ENUM('ACTIVE','INACTIVE','MATCHED','EXPIRED') NOT NULL DEFAULT 'ACTIVE',
		boosted BOOLEAN NOT NULL DEFAULT FALSE,
		boosted_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_listings_team_status (team_id, status, boosted, created_at),
		KEY idx_listings_owner (owner_id),
		CONSTRAINT fk_listings_owner FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		amount BIGINT NOT NULL,
		note VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_credit_tx_user (user_id, id),
		CONSTRAINT fk_credit_tx_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		listing_id BIGINT UNSIGNED NULL,
		listing_key BIGINT UNSIGNED NOT NULL DEFAULT 0,
		user_low BIGINT UNSIGNED NOT NULL,
		user_high BIGINT UNSIGNED NOT NULL,
		status ENUM('ACTIVE','ENDED') NOT NULL DEFAULT 'ACTIVE',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_conversation_key (user_low, user_high, listing_key),
		KEY idx_conversations_listing (listing_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (conversation_id, user_id),
		KEY idx_participants_user (user_id, archived),
		CONSTRAINT fk_participants_conversation FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		conversation_id BIGINT UNSIGNED NOT NULL,
		sender_id BIGINT UNSIGNED NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_messages_conversation (conversation_id, id),
		CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		type ENUM('MESSAGE','MATCH') NOT NULL,
		title VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		data JSON NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_notifications_user (user_id, is_read, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
