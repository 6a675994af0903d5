package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"chatcore/internal/domain"
	"chatcore/internal/presence"
	"chatcore/internal/service"
)

// profileStatus is the HTTP mirror of the profile event: public fields
// plus the live online flag from the registry.
type profileStatus struct {
	domain.Profile
	Online bool `json:"online"`
}

func handleListUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.ListActive(r.Context(), 0, 100)
		if err != nil {
			writeError(w, err)
			return
		}
		profiles := lo.Map(users, func(u *domain.User, _ int) domain.Profile {
			return u.Profile()
		})
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleGetUser(userSvc *service.UserService, registry *presence.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "userID")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("invalid user id: %w", domain.ErrInvalidInput))
			return
		}
		user, err := userSvc.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if user == nil {
			writeError(w, fmt.Errorf("user %d: %w", id, domain.ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, profileStatus{
			Profile: user.Profile(),
			Online:  registry.IsOnline(user.ID),
		})
	}
}
