package db

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS es_sub_submissions (
  id TEXT PRIMARY KEY,
  form_code TEXT NOT NULL,
  config_version TEXT NOT NULL,
  child_name TEXT NOT NULL DEFAULT '',
  child_dob TEXT NOT NULL DEFAULT '',
  assessment_date TEXT NOT NULL DEFAULT '',
  gender TEXT NOT NULL DEFAULT '',
  completed_by TEXT NOT NULL DEFAULT '',
  consent_given INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  total_score TEXT,
  total_score_max_display TEXT,
  has_concerns INTEGER NOT NULL DEFAULT 0,
  revision INTEGER NOT NULL DEFAULT 0,
  computed_json TEXT CHECK (computed_json IS NULL OR json_valid(computed_json)),
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  finalized_at INTEGER
);

CREATE INDEX IF NOT EXISTS es_sub_submissions_form_idx ON es_sub_submissions (form_code, status);

CREATE TABLE IF NOT EXISTS es_sub_answers (
  submission_id TEXT NOT NULL REFERENCES es_sub_submissions(id) ON DELETE CASCADE,
  question_code TEXT NOT NULL,
  value_json TEXT NOT NULL CHECK (json_valid(value_json)),
  score_value TEXT,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (submission_id, question_code)
);

CREATE TABLE IF NOT EXISTS es_sub_scale_scores (
  submission_id TEXT NOT NULL REFERENCES es_sub_submissions(id) ON DELETE CASCADE,
  scale_code TEXT NOT NULL,
  score TEXT NOT NULL,
  max_score TEXT NOT NULL,
  risk_factor TEXT NOT NULL,
  risk_percent TEXT NOT NULL,
  included_in_doctor_table INTEGER NOT NULL DEFAULT 0,
  threshold_code TEXT NOT NULL DEFAULT '',
  risk_level TEXT NOT NULL DEFAULT '',
  include_in_patient_summary INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (submission_id, scale_code)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS es_sub_submissions (
  id TEXT PRIMARY KEY,
  form_code TEXT NOT NULL,
  config_version TEXT NOT NULL,
  child_name TEXT NOT NULL DEFAULT '',
  child_dob TEXT NOT NULL DEFAULT '',
  assessment_date TEXT NOT NULL DEFAULT '',
  gender TEXT NOT NULL DEFAULT '',
  completed_by TEXT NOT NULL DEFAULT '',
  consent_given BOOLEAN NOT NULL DEFAULT FALSE,
  status TEXT NOT NULL,
  total_score NUMERIC,
  total_score_max_display NUMERIC,
  has_concerns BOOLEAN NOT NULL DEFAULT FALSE,
  revision BIGINT NOT NULL DEFAULT 0,
  computed_json JSONB,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  finalized_at BIGINT
);

CREATE INDEX IF NOT EXISTS es_sub_submissions_form_idx ON es_sub_submissions (form_code, status);

CREATE TABLE IF NOT EXISTS es_sub_answers (
  submission_id TEXT NOT NULL REFERENCES es_sub_submissions(id) ON DELETE CASCADE,
  question_code TEXT NOT NULL,
  value_json JSONB NOT NULL,
  score_value NUMERIC,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (submission_id, question_code)
);

CREATE TABLE IF NOT EXISTS es_sub_scale_scores (
  submission_id TEXT NOT NULL REFERENCES es_sub_submissions(id) ON DELETE CASCADE,
  scale_code TEXT NOT NULL,
  score NUMERIC NOT NULL,
  max_score NUMERIC NOT NULL,
  risk_factor NUMERIC NOT NULL,
  risk_percent NUMERIC NOT NULL,
  included_in_doctor_table BOOLEAN NOT NULL DEFAULT FALSE,
  threshold_code TEXT NOT NULL DEFAULT '',
  risk_level TEXT NOT NULL DEFAULT '',
  include_in_patient_summary BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (submission_id, scale_code)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
