package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edukita/gradcert-api/internal/models"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1:   "1st",
		2:   "2nd",
		3:   "3rd",
		4:   "4th",
		11:  "11th",
		12:  "12th",
		13:  "13th",
		21:  "21st",
		22:  "22nd",
		23:  "23rd",
		101: "101st",
		111: "111th",
		112: "112th",
		113: "113th",
	}
	for n, want := range cases {
		assert.Equal(t, want, Ordinal(n))
	}
}

func TestFieldValues(t *testing.T) {
	cert := &models.IssuedCertificate{
		StudentName:   "Alice",
		CertificateNo: "PFX-DIPLOMA-2026-0001",
		QRPayload:     "https://certs.example.test/verify/certificates/abc",
		IssuedAt:      time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC),
	}
	batch := &models.GraduationBatch{
		GraduationDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		AcademicYearID: "2025/2026",
		ClassID:        "XII-A",
	}
	pos := 3
	snapshot := &models.GraduationStudent{
		Position:    &pos,
		Eligibility: models.EligibilityReport{Percentage: f(88.25)},
	}

	values := fieldValues(cert, batch, snapshot)
	assert.Equal(t, "Alice", values["student_name"])
	assert.Equal(t, "PFX-DIPLOMA-2026-0001", values["certificate_no"])
	assert.Equal(t, "20 June 2026", values["graduation_date"])
	assert.Equal(t, "88.25%", values["percentage"])
	assert.Equal(t, "3rd", values["rank"])
}

func TestFieldValuesWithoutSnapshot(t *testing.T) {
	cert := &models.IssuedCertificate{StudentName: "Alice"}
	batch := &models.GraduationBatch{GraduationDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)}

	values := fieldValues(cert, batch, nil)
	_, hasPct := values["percentage"]
	_, hasRank := values["rank"]
	assert.False(t, hasPct)
	assert.False(t, hasRank)
}

func TestSubstitute(t *testing.T) {
	body := "<p>{{student_name}} passed with {{percentage}}</p>"
	out := substitute(body, map[string]string{"student_name": "Alice", "percentage": "90%"})
	assert.Equal(t, "<p>Alice passed with 90%</p>", out)
}
