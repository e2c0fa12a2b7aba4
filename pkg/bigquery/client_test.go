package bigquery

import (
	"testing"

	"github.com/angelmondragon/stockcast/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	cfg := config.BigQueryConfig{
		Dataset:           "stockcast",
		TransactionsTable: " transactions ",
	}

	tables := configuredTables(cfg)

	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0] != "transactions" {
		t.Fatalf("expected transactions, got %s", tables[0])
	}

	if got := configuredTables(config.BigQueryConfig{TransactionsTable: "  "}); len(got) != 0 {
		t.Fatalf("expected blank table to be skipped, got %v", got)
	}
}

func TestQualifiedTable(t *testing.T) {
	got := qualifiedTable("proj-1", " retail ", "transactions")
	if got != "`proj-1.retail.transactions`" {
		t.Fatalf("unexpected table ref %s", got)
	}

	var nilClient *Client
	if nilClient.TableRef("transactions") != "" {
		t.Fatalf("nil client should not build a table ref")
	}
}

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	gcp := config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsWithFile(t *testing.T) {
	gcp := config.GCPConfig{
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option when using credentials file, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	gcp := config.GCPConfig{}

	opts := clientOptions(gcp)
	if len(opts) != 0 {
		t.Fatalf("expected 0 options when no credentials provided, got %d", len(opts))
	}
}
