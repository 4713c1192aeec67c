// Package directory resolve usuários da plataforma pelo login ou pelo nome
// usado em cada plataforma de jogo (PSN, Xbox, Steam...).
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// User é o cadastro mínimo usado na resolução de vencedores
type User struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

var ErrUsernameTaken = errors.New("username already taken")

// Postgres consulta a tabela users
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ResolveByUsername devolve "" quando o login não existe
func (p *Postgres) ResolveByUsername(ctx context.Context, name string) (string, error) {
	var id string
	err := p.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// ResolveByPlatformUsername procura o nome em qualquer plataforma.
// Mais de um dono para o mesmo nome conta como não encontrado.
func (p *Postgres) ResolveByPlatformUsername(ctx context.Context, name string) (string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT u.id FROM users u, jsonb_each_text(u.platform_usernames) p
		WHERE lower(p.value) = lower($1)
		LIMIT 2`, strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(ids) != 1 {
		return "", nil
	}
	return ids[0], nil
}

// Upsert grava o usuário; o login é único sem diferenciar maiúsculas
func (p *Postgres) Upsert(ctx context.Context, u User) error {
	names, err := json.Marshal(u.PlatformUsernames)
	if err != nil {
		return err
	}
	if u.PlatformUsernames == nil {
		names = []byte("{}")
	}

	var owner string
	err = p.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE lower(username) = lower($1)`, u.Username).Scan(&owner)
	switch {
	case err == nil && owner != u.ID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (id, username, platform_usernames) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, platform_usernames = EXCLUDED.platform_usernames`,
		u.ID, u.Username, names)
	return err
}

// Memory é o diretório em memória usado em testes e com STORE=memory
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemory(users ...User) *Memory {
	m := &Memory{users: map[string]User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *Memory) ResolveByUsername(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(name)) {
			return u.ID, nil
		}
	}
	return "", nil
}

func (m *Memory) ResolveByPlatformUsername(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = strings.TrimSpace(name)
	found := ""
	for _, u := range m.users {
		for _, v := range u.PlatformUsernames {
			if !strings.EqualFold(v, name) {
				continue
			}
			if found != "" && found != u.ID {
				return "", nil
			}
			found = u.ID
		}
	}
	return found, nil
}

func (m *Memory) Upsert(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.ID != u.ID && strings.EqualFold(other.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	m.users[u.ID] = u
	return nil
}
