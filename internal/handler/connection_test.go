package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitask/rabbitask-server-go/internal/database"
	"github.com/rabbitask/rabbitask-server-go/internal/middleware"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type memUserRepo struct {
	users map[int64]*model.User
}

func (m *memUserRepo) add(id int64, name string, role model.UserRole) {
	m.users[id] = &model.User{
		ID:    id,
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Role:  role,
	}
}

func (m *memUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return m.users[id], nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	return nil, nil
}

func (m *memUserRepo) HasRole(ctx context.Context, id int64, role model.UserRole) (bool, error) {
	u, ok := m.users[id]
	return ok && u.Role == role, nil
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := m.FindByEmail(ctx, email)
	return u != nil, nil
}

type memEdge struct{ agentID, userID int64 }

type memConnRepo struct {
	edges map[memEdge]bool
	users *memUserRepo
}

func (m *memConnRepo) Create(ctx context.Context, agentID, userID int64) error {
	m.edges[memEdge{agentID, userID}] = true
	return nil
}

func (m *memConnRepo) Exists(ctx context.Context, agentID, userID int64) (bool, error) {
	return m.edges[memEdge{agentID, userID}], nil
}

func (m *memConnRepo) Delete(ctx context.Context, agentID, userID int64) (bool, error) {
	key := memEdge{agentID, userID}
	if !m.edges[key] {
		return false, nil
	}
	delete(m.edges, key)
	return true, nil
}

func (m *memConnRepo) ListUserIDsByAgent(ctx context.Context, agentID int64) ([]int64, error) {
	var ids []int64
	for e := range m.edges {
		if e.agentID == agentID {
			ids = append(ids, e.userID)
		}
	}
	return ids, nil
}

func (m *memConnRepo) ListUsersByAgent(ctx context.Context, agentID int64) ([]model.UserSummary, error) {
	var out []model.UserSummary
	for e := range m.edges {
		if e.agentID == agentID {
			if u := m.users.users[e.userID]; u != nil {
				out = append(out, u.Summary())
			}
		}
	}
	return out, nil
}

func (m *memConnRepo) ListAgentsByUser(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	var out []model.UserSummary
	for e := range m.edges {
		if e.userID == userID {
			if u := m.users.users[e.agentID]; u != nil {
				out = append(out, u.Summary())
			}
		}
	}
	return out, nil
}

type memCodeRepo struct {
	codes  map[string]*model.ConnectionCode
	nextID int64
}

func (m *memCodeRepo) Create(ctx context.Context, params model.CreateConnectionCodeParams) (*model.ConnectionCode, error) {
	m.nextID++
	cc := &model.ConnectionCode{
		ID:        m.nextID,
		Code:      params.Code,
		UserID:    params.UserID,
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	m.codes[params.Code] = cc
	return cc, nil
}

func (m *memCodeRepo) Consume(ctx context.Context, code string) (*model.ConnectionCode, error) {
	cc, ok := m.codes[code]
	if !ok || cc.Used || !cc.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cc.Used = true
	claimed := *cc
	return &claimed, nil
}

func (m *memCodeRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	cc, ok := m.codes[code]
	return ok && !cc.Used && cc.ExpiresAt.After(time.Now()), nil
}

func (m *memCodeRepo) InvalidateByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for _, cc := range m.codes {
		if cc.UserID == userID && !cc.Used {
			cc.Used = true
			count++
		}
	}
	return count, nil
}

func (m *memCodeRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func (m *memCodeRepo) WithTx(tx *sqlx.Tx) repository.ConnectionCodeRepository {
	return m
}

type connectionTestEnv struct {
	handler  *ConnectionHandler
	userRepo *memUserRepo
	connRepo *memConnRepo
	codeRepo *memCodeRepo
}

func newConnectionTestEnv() *connectionTestEnv {
	userRepo := &memUserRepo{users: make(map[int64]*model.User)}
	connRepo := &memConnRepo{edges: make(map[memEdge]bool), users: userRepo}
	codeRepo := &memCodeRepo{codes: make(map[string]*model.ConnectionCode)}
	authz := service.NewAuthzService(userRepo, connRepo)
	connService := service.NewConnectionService(passthroughTx{}, codeRepo, connRepo, userRepo, authz, nil)
	return &connectionTestEnv{
		handler:  NewConnectionHandler(connService, authz),
		userRepo: userRepo,
		connRepo: connRepo,
		codeRepo: codeRepo,
	}
}

func (env *connectionTestEnv) do(t *testing.T, method, target string, body any, actorID int64) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(middleware.WithUserID(req.Context(), actorID))
	rec := httptest.NewRecorder()
	env.handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateCodeEndpoint(t *testing.T) {
	t.Run("issues a code for a standard user", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)

		rec := env.do(t, http.MethodPost, "/code", nil, 1)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Code      string    `json:"code"`
			ExpiresAt time.Time `json:"expiresAt"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Code, 8)
		assert.True(t, resp.ExpiresAt.After(time.Now()))
	})

	t.Run("refuses agents", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(2, "Bob", model.RoleAgent)

		rec := env.do(t, http.MethodPost, "/code", nil, 2)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRedeemCodeEndpoint(t *testing.T) {
	seedCode := func(env *connectionTestEnv, code string, userID int64) {
		env.codeRepo.codes[code] = &model.ConnectionCode{
			Code:      code,
			UserID:    userID,
			ExpiresAt: time.Now().Add(time.Minute),
		}
	}

	t.Run("connects the agent to the code owner", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)
		seedCode(env, "ABCD2345", 1)

		rec := env.do(t, http.MethodPost, "/redeem", map[string]string{"code": "ABCD2345"}, 2)
		require.Equal(t, http.StatusOK, rec.Code)

		var owner model.UserSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &owner))
		assert.Equal(t, int64(1), owner.ID)
		assert.Equal(t, "Alice", owner.Name)
	})

	t.Run("rejects an unknown code with 400", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(2, "Bob", model.RoleAgent)

		rec := env.do(t, http.MethodPost, "/redeem", map[string]string{"code": "NOPE0000"}, 2)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("repeated redemption is a conflict", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)
		seedCode(env, "ABCD2345", 1)

		rec := env.do(t, http.MethodPost, "/redeem", map[string]string{"code": "ABCD2345"}, 2)
		require.Equal(t, http.StatusOK, rec.Code)

		seedCode(env, "EFGH6789", 1)
		rec = env.do(t, http.MethodPost, "/redeem", map[string]string{"code": "EFGH6789"}, 2)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("requires a code field", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(2, "Bob", model.RoleAgent)

		rec := env.do(t, http.MethodPost, "/redeem", map[string]string{}, 2)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListConnectionsEndpoint(t *testing.T) {
	t.Run("agents see managed users", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, env.connRepo.Create(context.Background(), 2, 1))

		rec := env.do(t, http.MethodGet, "/", nil, 2)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Users []model.UserSummary `json:"users"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Users, 1)
		assert.Equal(t, "Alice", resp.Users[0].Name)
	})

	t.Run("standard users see their agents", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, env.connRepo.Create(context.Background(), 2, 1))

		rec := env.do(t, http.MethodGet, "/", nil, 1)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Agents []model.UserSummary `json:"agents"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Agents, 1)
		assert.Equal(t, "Bob", resp.Agents[0].Name)
	})
}

func TestDisconnectEndpoint(t *testing.T) {
	t.Run("removes the edge", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, env.connRepo.Create(context.Background(), 2, 1))

		rec := env.do(t, http.MethodDelete, "/1", nil, 2)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		exists, _ := env.connRepo.Exists(context.Background(), 2, 1)
		assert.False(t, exists)
	})

	t.Run("missing edge is 404", func(t *testing.T) {
		env := newConnectionTestEnv()
		env.userRepo.add(1, "Alice", model.RoleStandard)
		env.userRepo.add(2, "Bob", model.RoleAgent)

		rec := env.do(t, http.MethodDelete, "/1", nil, 2)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestParsePagination(t *testing.T) {
	t.Run("defaults apply", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
		page := ParsePagination(req)
		assert.Equal(t, DefaultLimit, page.Limit)
		assert.Equal(t, 0, page.Offset)
	})

	t.Run("caps the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=5000&offset=-3", nil)
		page := ParsePagination(req)
		assert.Equal(t, DefaultLimit, page.Limit)
		assert.Equal(t, 0, page.Offset)
	})

	t.Run("accepts explicit values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=25&offset=50", nil)
		page := ParsePagination(req)
		assert.Equal(t, 25, page.Limit)
		assert.Equal(t, 50, page.Offset)
	})
}
