package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
)

// GroupStore is the subset of the group store the API drives.
type GroupStore interface {
	Create(name string, lead group.Person) (group.Group, error)
	Get(id string) (group.Group, error)
	List() []group.Group
	Delete(id string) error
	AddMember(id string, m group.Member) (group.Member, error)
	RemoveMember(id, memberID string) error
	SetRecipient(id string, r group.Recipient) (group.Group, error)
}

type personBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
}

type createGroupBody struct {
	Name string     `json:"name" validate:"required,max=200"`
	Lead personBody `json:"lead"`
}

type memberBody struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type recipientBody struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// RegisterGroupRoutes wires group, member and recipient endpoints.
func RegisterGroupRoutes(mux *http.ServeMux, store GroupStore) {
	handle := func(pattern, name string, fn http.HandlerFunc) {
		mux.Handle(pattern, otelhttp.NewHandler(fn, name))
	}

	handle("POST /api/groups", "groups-create", func(w http.ResponseWriter, r *http.Request) {
		var body createGroupBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		g, err := store.Create(body.Name, group.Person(body.Lead))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	})

	handle("GET /api/groups", "groups-list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"groups": store.List()})
	})

	handle("GET /api/groups/{id}", "groups-get", func(w http.ResponseWriter, r *http.Request) {
		g, err := store.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	})

	handle("DELETE /api/groups/{id}", "groups-delete", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	handle("POST /api/groups/{id}/members", "groups-add-member", func(w http.ResponseWriter, r *http.Request) {
		var body memberBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		m, err := store.AddMember(r.PathValue("id"), group.Member{Name: body.Name, Email: body.Email})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	})

	handle("DELETE /api/groups/{id}/members/{memberID}", "groups-remove-member", func(w http.ResponseWriter, r *http.Request) {
		if err := store.RemoveMember(r.PathValue("id"), r.PathValue("memberID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	handle("PUT /api/groups/{id}/recipient", "groups-set-recipient", func(w http.ResponseWriter, r *http.Request) {
		var body recipientBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		g, err := store.SetRecipient(r.PathValue("id"), group.Recipient(body))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	})
}
