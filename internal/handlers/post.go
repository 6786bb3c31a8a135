package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

type PostHandler struct {
	postService services.PostServiceInterface
	userService services.UserServiceInterface
}

func NewPostHandler(postService services.PostServiceInterface, userService services.UserServiceInterface) *PostHandler {
	return &PostHandler{
		postService: postService,
		userService: userService,
	}
}

type CreatePostRequest struct {
	Content      string  `json:"content" validate:"required,max=5000"`
	ImageURL     *string `json:"image_url" validate:"omitempty,url,max=2048"`
	Visibility   string  `json:"visibility" validate:"omitempty,oneof=public friends"`
	Collaborator string  `json:"collaborator"`
}

// UpdatePostRequest fields are optional. An empty image_url removes the image.
type UpdatePostRequest struct {
	Content    *string `json:"content" validate:"omitempty,max=5000"`
	ImageURL   *string `json:"image_url" validate:"omitempty,max=2048"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=public friends"`
}

type PostResponse struct {
	Post *models.Post `json:"post"`
}

type PostsResponse struct {
	Posts []models.Post `json:"posts"`
}

// List returns the posts of ?author= visible to the caller, or the public
// feed when no author is given.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer := viewerID(r.Context())

	var (
		posts []models.Post
		err   error
	)
	if author := strings.TrimSpace(r.URL.Query().Get("author")); author != "" {
		authorUser, lookupErr := h.userService.GetByUsername(r.Context(), author)
		if lookupErr != nil {
			writeServiceError(w, lookupErr, "resolving author")
			return
		}
		posts, err = h.postService.ListByAuthor(r.Context(), viewer, authorUser.ID)
	} else {
		posts, err = h.postService.ListPublic(r.Context(), queryInt(r, "limit", 0))
	}
	if err != nil {
		writeServiceError(w, err, "listing posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}

	writeJSON(w, http.StatusOK, PostsResponse{Posts: posts})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePathID(w, r, "Invalid post ID")
	if !ok {
		return
	}

	post, err := h.postService.GetByID(r.Context(), viewerID(r.Context()), postID)
	if err != nil {
		writeServiceError(w, err, "getting post")
		return
	}

	writeJSON(w, http.StatusOK, PostResponse{Post: post})
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	params := models.CreatePostParams{
		AuthorID:   user.ID,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		Visibility: models.Visibility(req.Visibility),
	}

	if collaborator := strings.TrimSpace(req.Collaborator); collaborator != "" {
		other, err := h.userService.GetByUsername(r.Context(), collaborator)
		if err != nil {
			writeServiceError(w, err, "resolving collaborator")
			return
		}
		params.CollaboratorID = &other.ID
	}

	post, err := h.postService.Create(r.Context(), params)
	if err != nil {
		writeServiceError(w, err, "creating post")
		return
	}

	writeJSON(w, http.StatusCreated, PostResponse{Post: post})
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	postID, ok := parsePathID(w, r, "Invalid post ID")
	if !ok {
		return
	}

	var req UpdatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	params := models.UpdatePostParams{
		Content:  req.Content,
		ImageURL: req.ImageURL,
	}
	if req.Visibility != nil {
		v := models.Visibility(*req.Visibility)
		params.Visibility = &v
	}

	post, err := h.postService.Update(r.Context(), user.ID, postID, params)
	if err != nil {
		writeServiceError(w, err, "updating post")
		return
	}

	writeJSON(w, http.StatusOK, PostResponse{Post: post})
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	postID, ok := parsePathID(w, r, "Invalid post ID")
	if !ok {
		return
	}

	if err := h.postService.Delete(r.Context(), user.ID, postID); err != nil {
		writeServiceError(w, err, "deleting post")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

func parsePathID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}
