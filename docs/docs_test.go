package docs

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swaggerDoc struct {
	Paths map[string]map[string]struct {
		Description string `json:"description"`
	} `json:"paths"`
	Definitions map[string]struct {
		Required []string `json:"required"`
	} `json:"definitions"`
}

func readDoc(t *testing.T) swaggerDoc {
	t.Helper()

	var doc swaggerDoc
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))
	return doc
}

func TestWebsocketDocNamesRealRooms(t *testing.T) {
	doc := readDoc(t)

	ws, ok := doc.Paths["/ws"]["get"]
	require.True(t, ok, "/ws is documented")

	salonPrefix := strings.TrimSuffix(domain.SalonRoom(uuid.Nil), uuid.Nil.String())
	userPrefix := strings.TrimSuffix(domain.UserRoom(uuid.Nil), uuid.Nil.String())

	assert.Contains(t, ws.Description, `"room":"`+salonPrefix+`<id>"`)
	assert.Contains(t, ws.Description, userPrefix+"<id>")
	assert.Contains(t, ws.Description, domain.AdminRoom)
}

func TestServiceItemNeedsOnlyName(t *testing.T) {
	doc := readDoc(t)

	item, ok := doc.Definitions["httpgin.ServiceItemInput"]
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, item.Required)
}
