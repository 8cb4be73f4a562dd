package migration

// Migrations is the ordered, append-only schema history. Both the embedded
// sqlite backend and the server backends apply this same list, so the two
// stay byte-for-byte equivalent at every version.
var Migrations = []Migration{
	{
		Version: 1,
		Statements: func(dialect string) []string {
			j := jsonType(dialect)
			return []string{
				`CREATE TABLE payments (
					id TEXT NOT NULL PRIMARY KEY,
					payment_type TEXT NOT NULL,
					status TEXT NOT NULL,
					amount BIGINT NOT NULL,
					fees BIGINT NOT NULL,
					timestamp BIGINT NOT NULL,
					method TEXT,
					withdraw_tx_id TEXT,
					deposit_tx_id TEXT
				)`,
				`CREATE INDEX idx_payments_timestamp ON payments (timestamp)`,
				`CREATE TABLE payment_details_lightning (
					payment_id TEXT NOT NULL PRIMARY KEY REFERENCES payments (id),
					invoice TEXT NOT NULL,
					payment_hash TEXT NOT NULL,
					destination_pubkey TEXT NOT NULL,
					description TEXT,
					preimage TEXT,
					htlc_status TEXT NOT NULL,
					htlc_expiry BIGINT NOT NULL
				)`,
				`CREATE INDEX idx_payment_details_lightning_invoice ON payment_details_lightning (invoice)`,
				`CREATE TABLE payment_details_spark (
					payment_id TEXT NOT NULL PRIMARY KEY REFERENCES payments (id),
					invoice_details ` + j + `,
					htlc_payment_hash TEXT,
					htlc_preimage TEXT,
					htlc_status TEXT,
					htlc_expiry BIGINT,
					conversion_info ` + j + `
				)`,
				`CREATE TABLE payment_details_token (
					payment_id TEXT NOT NULL PRIMARY KEY REFERENCES payments (id),
					metadata ` + j + ` NOT NULL,
					tx_hash TEXT NOT NULL,
					tx_type TEXT NOT NULL,
					invoice_details ` + j + `,
					conversion_info ` + j + `
				)`,
				`CREATE TABLE payment_metadata (
					payment_id TEXT NOT NULL PRIMARY KEY,
					parent_payment_id TEXT,
					lnurl_pay_info ` + j + `,
					lnurl_withdraw_info ` + j + `,
					conversion_status TEXT
				)`,
				`CREATE INDEX idx_payment_metadata_parent ON payment_metadata (parent_payment_id)`,
				`CREATE TABLE settings (
					name TEXT NOT NULL PRIMARY KEY,
					value TEXT NOT NULL
				)`,
			}
		},
	},
	{
		Version: 2,
		Statements: func(dialect string) []string {
			j := jsonType(dialect)
			return []string{
				`CREATE TABLE unclaimed_deposits (
					txid TEXT NOT NULL,
					vout INTEGER NOT NULL,
					amount_sats BIGINT,
					claim_error ` + j + `,
					refund_tx TEXT,
					refund_txid TEXT,
					PRIMARY KEY (txid, vout)
				)`,
			}
		},
	},
	{
		Version: 3,
		Statements: func(dialect string) []string {
			j := jsonType(dialect)
			return []string{
				`CREATE TABLE sync_state (
					record_type TEXT NOT NULL,
					data_id TEXT NOT NULL,
					revision BIGINT NOT NULL,
					schema_version TEXT NOT NULL,
					commit_time BIGINT NOT NULL,
					data ` + j + ` NOT NULL,
					PRIMARY KEY (record_type, data_id)
				)`,
				`CREATE TABLE sync_outgoing (
					record_type TEXT NOT NULL,
					data_id TEXT NOT NULL,
					local_revision BIGINT NOT NULL,
					revision BIGINT NOT NULL,
					schema_version TEXT NOT NULL,
					commit_time BIGINT NOT NULL,
					data ` + j + ` NOT NULL,
					updated_fields ` + j + `,
					PRIMARY KEY (record_type, data_id, local_revision)
				)`,
				`CREATE TABLE sync_incoming (
					record_type TEXT NOT NULL,
					data_id TEXT NOT NULL,
					revision BIGINT NOT NULL,
					schema_version TEXT NOT NULL,
					commit_time BIGINT NOT NULL,
					data ` + j + ` NOT NULL,
					PRIMARY KEY (record_type, data_id, revision)
				)`,
				`CREATE TABLE sync_revision (
					id INTEGER NOT NULL PRIMARY KEY CHECK (id = 1),
					revision BIGINT NOT NULL
				)`,
				`INSERT INTO sync_revision (id, revision) VALUES (1, 0)`,
				`CREATE TABLE sync_local_revision (
					id INTEGER NOT NULL PRIMARY KEY CHECK (id = 1),
					revision BIGINT NOT NULL
				)`,
				`INSERT INTO sync_local_revision (id, revision) VALUES (1, 0)`,
			}
		},
	},
	{
		Version: 4,
		Statements: func(dialect string) []string {
			j := jsonType(dialect)
			return []string{
				`CREATE TABLE lnurl_receive_metadata (
					payment_id TEXT NOT NULL PRIMARY KEY,
					metadata ` + j + ` NOT NULL,
					updated_at BIGINT NOT NULL
				)`,
				// Explicit details discriminant. Reconstructing the variant
				// from which side-table join happened to match is ambiguous
				// while two side rows exist for one id, so the tag is stored
				// and every read dispatches on it.
				`ALTER TABLE payments ADD COLUMN details_type TEXT NOT NULL DEFAULT ''`,
				`UPDATE payments SET details_type = 'lightning' WHERE details_type = '' AND id IN (SELECT payment_id FROM payment_details_lightning)`,
				`UPDATE payments SET details_type = 'token' WHERE details_type = '' AND id IN (SELECT payment_id FROM payment_details_token)`,
				`UPDATE payments SET details_type = 'withdraw' WHERE details_type = '' AND withdraw_tx_id IS NOT NULL`,
				`UPDATE payments SET details_type = 'deposit' WHERE details_type = '' AND deposit_tx_id IS NOT NULL`,
				`UPDATE payments SET details_type = 'spark' WHERE details_type = ''`,
			}
		},
	},
}

func jsonType(dialect string) string {
	switch dialect {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}
