package session

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitas-app/session_layer/internal/storage"
)

func testClaims() Claims {
	return Claims{
		UserID:   "u-42",
		Name:     "Ana Souza",
		Email:    "ana@example.org",
		RoleName: "Administrador",
	}
}

func TestSetSessionHydrateRoundTrip(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := NewStore(mem, nil)

	require.NoError(t, store.SetSession("tok-1", testClaims()))

	// A fresh store over the same storage reconstructs the session.
	restored := NewStore(mem, nil).Hydrate()
	require.NotNil(t, restored)
	assert.Equal(t, "tok-1", restored.Token)
	assert.Equal(t, testClaims(), restored.Claims)
	assert.Equal(t, SourceHydrated, restored.Source)
}

func TestHydrateAfterClearReturnsNil(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := NewStore(mem, nil)

	require.NoError(t, store.SetSession("tok-1", testClaims()))
	require.NoError(t, store.Clear())

	assert.Nil(t, store.Current())
	assert.Nil(t, NewStore(mem, nil).Hydrate())
}

func TestHydrateMalformedUserRecord(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Set(KeyToken, "tok-1"))
	require.NoError(t, mem.Set(KeyUser, "{broken json"))

	// Malformed record is "no session", not an error.
	assert.Nil(t, NewStore(mem, nil).Hydrate())
}

func TestHydratePartialRecord(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Set(KeyToken, "tok-1"))

	assert.Nil(t, NewStore(mem, nil).Hydrate())
}

func TestHydrateStorageFailure(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.FailGets = true

	assert.Nil(t, NewStore(mem, nil).Hydrate())
}

func TestSetSessionPublishes(t *testing.T) {
	store := NewStore(storage.NewMemoryStore(), nil)

	var published []*Session
	store.Subscribe(func(s *Session) { published = append(published, s) })

	require.NoError(t, store.SetSession("tok-1", testClaims()))
	require.NoError(t, store.Clear())

	require.Len(t, published, 2)
	require.NotNil(t, published[0])
	assert.Equal(t, "tok-1", published[0].Token)
	assert.Equal(t, SourceLogin, published[0].Source)
	assert.Nil(t, published[1])
}

func TestPersistedBeforePublished(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := NewStore(mem, nil)

	// Inside the publish callback the durable record already agrees
	// with the in-memory value.
	store.Subscribe(func(s *Session) {
		token, ok, err := mem.Get(KeyToken)
		require.NoError(t, err)
		if s != nil {
			require.True(t, ok)
			assert.Equal(t, s.Token, token)
		} else {
			assert.False(t, ok)
		}
	})

	require.NoError(t, store.SetSession("tok-1", testClaims()))
	require.NoError(t, store.Clear())
}

func TestToken(t *testing.T) {
	store := NewStore(storage.NewMemoryStore(), nil)
	assert.Equal(t, "", store.Token())

	require.NoError(t, store.SetSession("tok-1", testClaims()))
	assert.Equal(t, "tok-1", store.Token())
}

func TestAuthenticated(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Authenticated())
	assert.False(t, (&Session{}).Authenticated())
	assert.True(t, (&Session{Token: "tok"}).Authenticated())
}

func encodeSegment(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func TestDecodeClaims(t *testing.T) {
	header := encodeSegment(t, map[string]string{"alg": "HS256", "typ": "JWT"})
	payload := encodeSegment(t, map[string]interface{}{
		"user_id":   "u-42",
		"name":      "Ana Souza",
		"email":     "ana@example.org",
		"role_name": "Coordenador Geral",
	})
	token := header + "." + payload + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID)
	assert.Equal(t, "Ana Souza", claims.Name)
	assert.Equal(t, "Coordenador Geral", claims.RoleName)
}

func TestDecodeClaimsFallbackKeys(t *testing.T) {
	header := encodeSegment(t, map[string]string{"alg": "HS256", "typ": "JWT"})
	payload := encodeSegment(t, map[string]interface{}{
		"sub":  "u-7",
		"role": "Usuário",
	})
	token := header + "." + payload + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u-7", claims.UserID)
	assert.Equal(t, "Usuário", claims.RoleName)
}

func TestDecodeClaimsGarbage(t *testing.T) {
	_, err := DecodeClaims("not-a-jwt")
	assert.Error(t, err)
}
