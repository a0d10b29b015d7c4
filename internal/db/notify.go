package db

import (
	"context"
	"fmt"
	"strings"
)

// NotifyTables are the tables whose row changes are broadcast. Accounts
// hold credentials and are never included.
var NotifyTables = []string{
	"profiles",
	"follows",
	"communities",
	"posts",
	"events",
	"event_attendees",
	"collab_posts",
	"collab_applications",
	"collab_deliverables",
	"collab_messages",
	"college_messages",
	"wallets",
	"wallet_transactions",
	"escrows",
	"payments",
	"subscriptions",
	"complaints",
	"notifications",
}

// pg_notify payloads are capped near 8000 bytes; oversized rows drop
// their free-text columns and subscribers refetch the row.
const notifyFunction = `
CREATE OR REPLACE FUNCTION vibehub_notify_change() RETURNS trigger AS $$
DECLARE
	payload jsonb;
BEGIN
	payload := jsonb_build_object('table', TG_TABLE_NAME, 'type', TG_OP, 'at', now());
	IF TG_OP <> 'DELETE' THEN
		payload := payload || jsonb_build_object('new', to_jsonb(NEW));
	END IF;
	IF TG_OP <> 'INSERT' THEN
		payload := payload || jsonb_build_object('old', to_jsonb(OLD));
	END IF;
	IF octet_length(payload::text) > 7900 THEN
		IF TG_OP <> 'DELETE' THEN
			payload := jsonb_set(payload, '{new}', (payload->'new') - 'content' - 'description' - 'body' - 'message' - 'note');
		END IF;
		IF TG_OP <> 'INSERT' THEN
			payload := jsonb_set(payload, '{old}', (payload->'old') - 'content' - 'description' - 'body' - 'message' - 'note');
		END IF;
	END IF;
	PERFORM pg_notify(TG_ARGV[0], payload::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// InstallNotifyTriggers installs row triggers that NOTIFY channel with
// every change to NotifyTables. Postgres only.
func (d *DB) InstallNotifyTriggers(ctx context.Context, channel string) error {
	if d.Dialect != DialectPostgres {
		return fmt.Errorf("notify triggers require postgres, have %s", d.Dialect)
	}
	if channel == "" {
		return fmt.Errorf("notify channel is required")
	}

	tx := d.DB.WithContext(ctx)
	if err := tx.Exec(notifyFunction).Error; err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	literal := "'" + strings.ReplaceAll(channel, "'", "''") + "'"
	for _, table := range NotifyTables {
		stmts := []string{
			fmt.Sprintf(`DROP TRIGGER IF EXISTS vibehub_notify ON %q`, table),
			fmt.Sprintf(`CREATE TRIGGER vibehub_notify AFTER INSERT OR UPDATE OR DELETE ON %q FOR EACH ROW EXECUTE FUNCTION vibehub_notify_change(%s)`, table, literal),
		}
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to install trigger on %s: %w", table, err)
			}
		}
	}
	return nil
}
