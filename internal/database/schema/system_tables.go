package schema

// TableDefinitions contains all the SQL statements to create the database tables
// Don't put REFERENCES and don't put CHECK constraints in the CREATE TABLE statements
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		first_name VARCHAR(255),
		last_name VARCHAR(255),
		company_name VARCHAR(255),
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(50),
		address VARCHAR(255),
		city VARCHAR(120),
		state VARCHAR(2),
		postal_code VARCHAR(20),
		opted_out BOOLEAN NOT NULL DEFAULT false,
		marketing_subscribed BOOLEAN NOT NULL DEFAULT true,
		email_validation_state VARCHAR(20) NOT NULL DEFAULT 'unknown',
		survey_outcome VARCHAR(255),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner_id ON accounts (owner_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_owner_email ON accounts (owner_id, lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner_created ON accounts (owner_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS policies (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL,
		owner_id UUID NOT NULL,
		policy_number VARCHAR(120) NOT NULL,
		lob VARCHAR(60) NOT NULL,
		status VARCHAR(20) NOT NULL,
		term_label VARCHAR(60),
		effective_date DATE NOT NULL,
		expiration_date DATE NOT NULL,
		premium NUMERIC(12,2),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_account_id ON policies (account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_owner_expiration ON policies (owner_id, expiration_date)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_owner_effective ON policies (owner_id, effective_date)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_status ON policies (status)`,

	`CREATE TABLE IF NOT EXISTS automations (
		id UUID PRIMARY KEY,
		owner_id UUID,
		name VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		send_time VARCHAR(5) NOT NULL DEFAULT '09:00',
		timezone VARCHAR(60) NOT NULL DEFAULT 'UTC',
		filter JSONB NOT NULL DEFAULT '{}',
		nodes JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_automations_owner_status ON automations (owner_id, status)`,

	`CREATE TABLE IF NOT EXISTS templates (
		id UUID PRIMARY KEY,
		owner_id VARCHAR(36) NOT NULL DEFAULT '',
		default_key VARCHAR(120) NOT NULL DEFAULT '',
		subject VARCHAR(255) NOT NULL,
		visual_editor_tree JSONB,
		body_html TEXT,
		body_text TEXT,
		from_email VARCHAR(255) NOT NULL,
		from_name VARCHAR(255),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_templates_owner_id ON templates (owner_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_default_key ON templates (default_key) WHERE owner_id = ''`,

	`CREATE TABLE IF NOT EXISTS scheduled_emails (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		automation_id UUID,
		batch_id UUID,
		account_id UUID NOT NULL,
		template_id UUID NOT NULL,
		to_email VARCHAR(255) NOT NULL,
		to_name VARCHAR(255),
		from_email VARCHAR(255) NOT NULL,
		from_name VARCHAR(255),
		subject VARCHAR(255) NOT NULL,
		scheduled_for TIMESTAMP NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'Pending',
		requires_verification BOOLEAN NOT NULL DEFAULT false,
		qualification_value VARCHAR(60) NOT NULL,
		trigger_field VARCHAR(60) NOT NULL,
		node_id VARCHAR(60) NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		last_attempt_at TIMESTAMP,
		error_message TEXT,
		email_log_id UUID,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_emails_status_scheduled_for ON scheduled_emails (status, scheduled_for)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_emails_status_verification ON scheduled_emails (status, requires_verification, scheduled_for)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_emails_automation_id ON scheduled_emails (automation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_emails_account_id ON scheduled_emails (account_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_scheduled_emails_dedup ON scheduled_emails (
		automation_id, account_id, template_id, qualification_value
	) WHERE status IN ('Pending', 'Processing')`,

	`CREATE TABLE IF NOT EXISTS email_logs (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		scheduled_email_id UUID NOT NULL,
		account_id UUID NOT NULL,
		template_id UUID NOT NULL,
		to_email VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		body_html TEXT,
		sendgrid_message_id VARCHAR(255),
		message_id VARCHAR(255),
		reply_to VARCHAR(255),
		use_tracking_reply_to BOOLEAN NOT NULL DEFAULT false,
		status VARCHAR(20) NOT NULL DEFAULT 'Queued',
		sent_at TIMESTAMP,
		delivered_at TIMESTAMP,
		open_count INTEGER NOT NULL DEFAULT 0,
		click_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_template_to_email ON email_logs (template_id, to_email)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_account_status ON email_logs (account_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_sendgrid_message_id ON email_logs (sendgrid_message_id)`,

	`CREATE TABLE IF NOT EXISTS user_settings (
		owner_id UUID PRIMARY KEY,
		from_email VARCHAR(255) NOT NULL,
		from_name VARCHAR(255),
		reply_to_email VARCHAR(255),
		signature_html TEXT,
		agency_name VARCHAR(255),
		agency_address VARCHAR(255),
		agency_phone VARCHAR(50),
		agency_website VARCHAR(255),
		google_review_url VARCHAR(255),
		trial_starts_at TIMESTAMP,
		trial_ends_at TIMESTAMP,
		default_send_time VARCHAR(5) NOT NULL DEFAULT '09:00',
		timezone VARCHAR(60) NOT NULL DEFAULT 'UTC',
		daily_send_limit INTEGER NOT NULL DEFAULT 0,
		preferences JSONB NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS sender_domains (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		domain VARCHAR(255) NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT false,
		inbound_parse_enabled BOOLEAN NOT NULL DEFAULT false,
		inbound_subdomain VARCHAR(255)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sender_domains_owner_id ON sender_domains (owner_id)`,

	`CREATE TABLE IF NOT EXISTS unsubscribes (
		email VARCHAR(255) PRIMARY KEY,
		reason VARCHAR(255),
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS activity_log (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		account_id UUID,
		kind VARCHAR(60) NOT NULL,
		detail TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_log_owner_created ON activity_log (owner_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS mass_email_batches (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		template_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'Draft',
		scheduled_for TIMESTAMP,
		total_count INTEGER NOT NULL DEFAULT 0,
		sent_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
}

// TableNames returns a list of all table names in creation order.
var TableNames = []string{
	"accounts",
	"policies",
	"automations",
	"templates",
	"scheduled_emails",
	"email_logs",
	"user_settings",
	"sender_domains",
	"unsubscribes",
	"activity_log",
	"mass_email_batches",
}
