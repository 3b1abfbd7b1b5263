package postgresql

// migrations returns the embedded schema, keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS zaps (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT FALSE,
				total_runs INTEGER NOT NULL DEFAULT 0,
				successful_runs INTEGER NOT NULL DEFAULT 0,
				failed_runs INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS steps (
				id TEXT PRIMARY KEY,
				zap_id TEXT NOT NULL REFERENCES zaps(id) ON DELETE CASCADE,
				ordinal INTEGER NOT NULL,
				type TEXT NOT NULL,
				class_name TEXT NOT NULL,
				connection_id TEXT,
				payload JSONB,
				last_execution TIMESTAMP WITH TIME ZONE,
				comparison_data JSONB,
				UNIQUE (zap_id, ordinal)
			);

			CREATE TABLE IF NOT EXISTS connections (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				service TEXT NOT NULL,
				access_token TEXT NOT NULL,
				refresh_token TEXT,
				scopes TEXT[],
				expires_at TIMESTAMP WITH TIME ZONE,
				rate_limit_remaining INTEGER,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				zap_id TEXT NOT NULL REFERENCES zaps(id) ON DELETE CASCADE,
				status TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS step_executions (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				step_id TEXT NOT NULL,
				ordinal INTEGER NOT NULL,
				status TEXT NOT NULL,
				output JSONB,
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_steps_zap_ordinal ON steps(zap_id, ordinal);
			CREATE INDEX IF NOT EXISTS idx_executions_zap ON executions(zap_id, started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_step_executions_execution ON step_executions(execution_id, ordinal);
		`,
	}
}
