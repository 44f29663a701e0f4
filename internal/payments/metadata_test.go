package payments

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	c := Normalize(map[string]interface{}{})

	assert.Equal(t, "", c.StudentID)
	assert.Equal(t, DefaultStudentName, c.StudentName)
	assert.Equal(t, DefaultPaymentType, c.PaymentType)
	assert.Equal(t, DefaultChannel, c.Channel)
	assert.False(t, c.HasStudent())
}

func TestNormalizeAliases(t *testing.T) {
	tests := []struct {
		name  string
		bag   map[string]interface{}
		check func(t *testing.T, c Canonical)
	}{
		{
			name: "snake case",
			bag: map[string]interface{}{
				"student_id": "STU-1", "student_name": "Ada", "parent_name": "Mrs Obi",
				"parent_email": "OBI@MAIL.COM", "payment_type": "school_fees", "payment_channel": "card",
			},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "STU-1", c.StudentID)
				assert.Equal(t, "Ada", c.StudentName)
				assert.Equal(t, "Mrs Obi", c.ParentName)
				assert.Equal(t, "obi@mail.com", c.ParentEmail)
				assert.Equal(t, "school_fees", c.PaymentType)
				assert.Equal(t, "card", c.Channel)
			},
		},
		{
			name: "camel case",
			bag:  map[string]interface{}{"studentId": "STU-2", "studentName": "Bayo", "parentName": "Mr Bayo", "paymentType": "bus"},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "STU-2", c.StudentID)
				assert.Equal(t, "Bayo", c.StudentName)
				assert.Equal(t, "Mr Bayo", c.ParentName)
				assert.Equal(t, "bus", c.PaymentType)
			},
		},
		{
			name: "blank parent name falls through to guardian and customer",
			bag:  map[string]interface{}{"parent_name": "  ", "parentName": "", "guardian_name": "", "customerName": "Chidi"},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "Chidi", c.ParentName)
			},
		},
		{
			name: "bare email is the last email alias",
			bag:  map[string]interface{}{"email": "Payer@Example.com"},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "payer@example.com", c.ParentEmail)
			},
		},
		{
			name: "guardian email wins over bare email",
			bag:  map[string]interface{}{"email": "payer@example.com", "guardianEmail": "guardian@example.com"},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "guardian@example.com", c.ParentEmail)
			},
		},
		{
			name: "numeric student id",
			bag:  map[string]interface{}{"student_id": float64(42)},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "42", c.StudentID)
			},
		},
		{
			name: "values are sanitized",
			bag:  map[string]interface{}{"student_name": " <b>Ada</b> "},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "bAda/b", c.StudentName)
			},
		},
		{
			name: "custom fields are flattened",
			bag: map[string]interface{}{
				"custom_fields": []interface{}{
					map[string]interface{}{"display_name": "Student", "variable_name": "student_id", "value": "STU-9"},
					map[string]interface{}{"display_name": "Term", "variable_name": "term", "value": "First Term"},
				},
			},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "STU-9", c.StudentID)
				assert.Equal(t, "First Term", c.Term)
			},
		},
		{
			name: "custom fields never overwrite top level keys",
			bag: map[string]interface{}{
				"student_id":    "STU-TOP",
				"custom_fields": []interface{}{map[string]interface{}{"variable_name": "student_id", "value": "STU-CF"}},
			},
			check: func(t *testing.T, c Canonical) {
				assert.Equal(t, "STU-TOP", c.StudentID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Normalize(tt.bag))
		})
	}
}

func TestApplyWritesBothCasings(t *testing.T) {
	bag := map[string]interface{}{"studentId": "STU-1", "parent_name": "Mrs Obi", "email": "a@b.c", "term": "Second"}
	Normalize(bag).Apply(bag)
	StampPaid(bag, 1000)
	StampLedgerPaymentID(bag, "LEDGER-1")

	for _, pair := range MirroredKeys {
		snake, hasSnake := bag[pair[0]]
		camel, hasCamel := bag[pair[1]]
		assert.Equal(t, hasSnake, hasCamel, "pair %v", pair)
		assert.Equal(t, snake, camel, "pair %v", pair)
	}

	assert.Equal(t, "STU-1", bag[KeyStudentID])
	assert.Equal(t, "Mrs Obi", bag[KeyParentNameCamel])
	assert.Equal(t, "a@b.c", bag[KeyParentEmail])
	assert.Equal(t, true, bag[KeySchoolFeePaidCamel])
	assert.Equal(t, "LEDGER-1", LedgerPaymentID(bag))
}

func TestApplyRemovesUnresolvedStudent(t *testing.T) {
	bag := map[string]interface{}{"student_id": "", "studentId": "  "}
	Normalize(bag).Apply(bag)

	_, hasSnake := bag[KeyStudentID]
	_, hasCamel := bag[KeyStudentIDCamel]
	assert.False(t, hasSnake)
	assert.False(t, hasCamel)
	assert.Equal(t, DefaultStudentName, bag[KeyStudentName])
}

func TestMergePrefersResolvedValues(t *testing.T) {
	fromGateway := Normalize(map[string]interface{}{"payment_type": "exam_fee"})
	stored := Normalize(map[string]interface{}{"student_id": "STU-3", "student_name": "Chi", "payment_type": "school_fees", "parent_email": "p@x.io"})

	merged := fromGateway.Merge(stored)

	assert.Equal(t, "STU-3", merged.StudentID)
	assert.Equal(t, "Chi", merged.StudentName)
	assert.Equal(t, "exam_fee", merged.PaymentType)
	assert.Equal(t, "p@x.io", merged.ParentEmail)
}

func TestMirrorCasing(t *testing.T) {
	bag := map[string]interface{}{"ledgerPaymentId": "L-1", "student_name": "Ada", "studentName": "Other"}
	MirrorCasing(bag)

	assert.Equal(t, "L-1", bag[KeyLedgerPaymentID])
	assert.Equal(t, "Ada", bag[KeyStudentNameCamel])
}

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected map[string]interface{}
	}{
		{name: "object", raw: `{"student_id":"S1"}`, expected: map[string]interface{}{"student_id": "S1"}},
		{name: "encoded string", raw: `"{\"studentId\":\"S2\"}"`, expected: map[string]interface{}{"studentId": "S2"}},
		{name: "empty string", raw: `""`, expected: map[string]interface{}{}},
		{name: "null", raw: `null`, expected: map[string]interface{}{}},
		{name: "missing", raw: ``, expected: map[string]interface{}{}},
		{name: "array", raw: `[1,2]`, expected: map[string]interface{}{}},
		{name: "garbage string", raw: `"not json"`, expected: map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeMetadata(json.RawMessage(tt.raw))
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, got)
		})
	}
}
