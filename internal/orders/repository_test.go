package orders

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

func TestOrderInsertErrorMapsUniqueViolation(t *testing.T) {
	err := orderInsertError(&pgconn.PgError{Code: "23505", ConstraintName: "purchase_orders_number_key"})

	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "number", ve.Field)
}

func TestOrderInsertErrorPassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	require.Equal(t, boom, orderInsertError(boom))

	serialization := &pgconn.PgError{Code: "40001"}
	require.Equal(t, error(serialization), orderInsertError(serialization))
}
