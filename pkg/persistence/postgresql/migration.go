package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				project_id TEXT NOT NULL,
				issue_type TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT false,
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE,
				CHECK (NOT is_default OR issue_type = '')
			);

			CREATE INDEX idx_workflows_project_id ON workflows(project_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			-- At most one live workflow per project and issue type, and one live default
			CREATE UNIQUE INDEX uq_workflows_project_issue_type ON workflows(project_id, issue_type)
				WHERE is_active AND deleted_at IS NULL AND issue_type <> '';
			CREATE UNIQUE INDEX uq_workflows_project_default ON workflows(project_id)
				WHERE is_active AND deleted_at IS NULL AND is_default;

			CREATE TABLE workflow_steps (
				position BIGSERIAL,
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(255) NOT NULL,
				step_order INT NOT NULL DEFAULT 0,
				is_initial BOOLEAN NOT NULL DEFAULT false,
				is_final BOOLEAN NOT NULL DEFAULT false,
				properties JSONB NOT NULL DEFAULT '{}',
				CONSTRAINT uq_workflow_steps_status UNIQUE (workflow_id, status)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id, position);

			CREATE TABLE workflow_transitions (
				position BIGSERIAL,
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_step_id TEXT NOT NULL,
				to_step_id TEXT NOT NULL,
				name VARCHAR(255) NOT NULL,
				kind VARCHAR(20) NOT NULL CHECK (kind IN ('global', 'conditional')),
				conditions JSONB NOT NULL DEFAULT '[]',
				validators JSONB NOT NULL DEFAULT '[]',
				post_functions JSONB NOT NULL DEFAULT '[]',
				required_roles JSONB NOT NULL DEFAULT '[]',
				properties JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_workflow_transitions_workflow_id ON workflow_transitions(workflow_id, position);
		`,
		2: `
			-- Issue projection read by the transition engine
			CREATE TABLE issues (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				issue_type TEXT NOT NULL,
				status VARCHAR(255) NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_issues_project_id ON issues(project_id);
		`,
	}
}
