package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func templateRows(id string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "school_id", "name", "type", "body_html",
		"background_path", "layout_config", "page_size", "orientation", "is_active",
	}).AddRow(id, "org-1", nil, "Diploma", "diploma", "<p>{{student_name}}</p>", nil, nil, "A4", "L", active)
}

func TestTemplateRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_templates WHERE id = $1 AND organization_id = $2")).
		WithArgs("tpl-1", "org-1").
		WillReturnRows(templateRows("tpl-1", true))

	tmpl, err := repo.FindByID(context.Background(), "org-1", "tpl-1")
	require.NoError(t, err)
	require.Equal(t, "diploma", tmpl.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryFindByIDUnknown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	// Zero rows must surface as the bare sentinel so callers can map it to
	// a business error instead of a 500.
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_templates WHERE id = $1 AND organization_id = $2")).
		WithArgs("missing", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "org-1", "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryFindActivePrefersSchoolScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectQuery("FROM certificate_templates WHERE .* ORDER BY school_id NULLS LAST").
		WithArgs("org-1", "diploma", "school-1").
		WillReturnRows(templateRows("tpl-1", true))

	tmpl, err := repo.FindActive(context.Background(), "org-1", "school-1", "diploma")
	require.NoError(t, err)
	require.Equal(t, "tpl-1", tmpl.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
