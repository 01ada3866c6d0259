package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Recorder appends immutable activity records. Records are written inside the
// caller's transaction with the caller's timestamp, so an entry exists iff the
// mutation committed and carries the same ts as the mutated rows.
type Recorder struct {
	DB *sql.DB
}

type Metadata map[string]any

func (r Recorder) Append(ctx context.Context, tx *sql.Tx, ts, action, targetID, actorID, workspaceID string, meta Metadata) error {
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activities(ts,action,target_id,actor_id,workspace_id,metadata_json) VALUES (?,?,?,?,?,?)`,
		ts, action, nullable(targetID), actorID, nullable(workspaceID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
