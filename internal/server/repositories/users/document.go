package users

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/document"
)

// DocumentRepository works on a document loaded by document.Store.Update.
// Records are copied in and out so callers never alias the document.
type DocumentRepository struct {
	doc *document.Document
}

func NewDocumentRepository(doc *document.Document) *DocumentRepository {
	return &DocumentRepository{doc: doc}
}

func (r *DocumentRepository) find(match func(u *models.User) bool) (int, *models.User) {
	for i, u := range r.doc.Users {
		if match(u) {
			return i, u
		}
	}
	return -1, nil
}

func (r *DocumentRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, u := r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, user.Email) }); u != nil {
		return nil, common.ErrorAlreadyExists
	}

	r.doc.Users = append(r.doc.Users, user.Clone())
	r.doc.Touch()
	return user, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, u := r.find(func(u *models.User) bool { return u.ID == id }); u != nil {
		return u.Clone(), nil
	}
	return nil, common.ErrorNotFound
}

func (r *DocumentRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if _, u := r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) }); u != nil {
		return u.Clone(), nil
	}
	return nil, common.ErrorNotFound
}

func (r *DocumentRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	if _, u := r.find(func(u *models.User) bool { return u.VerificationToken == token }); u != nil {
		return u.Clone(), nil
	}
	return nil, common.ErrorNotFound
}

func (r *DocumentRepository) Update(ctx context.Context, user *models.User) error {
	i, _ := r.find(func(u *models.User) bool { return u.ID == user.ID })
	if i < 0 {
		return common.ErrorNotFound
	}
	r.doc.Users[i] = user.Clone()
	r.doc.Touch()
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	i, _ := r.find(func(u *models.User) bool { return u.ID == id })
	if i < 0 {
		return common.ErrorNotFound
	}
	r.doc.Users = append(r.doc.Users[:i], r.doc.Users[i+1:]...)
	r.doc.Touch()
	return nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(r.doc.Users))
	for _, u := range r.doc.Users {
		out = append(out, u.Clone())
	}
	return out, nil
}
