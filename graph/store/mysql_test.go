package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMySQLStore runs against a real server. Set TEST_MYSQL_DSN, e.g.
//
//	TEST_MYSQL_DSN="root:password@tcp(localhost:3306)/flowchart_test?parseTime=true"
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	st, err := NewMySQLStore[testState](dsn)
	require.NoError(t, err)
	defer st.Close()

	runStoreSuite(t, st)
}
