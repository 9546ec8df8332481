package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow-scoped key/value variables, unique per (workflow_id, key)
			CREATE TABLE variables (
				workflow_id VARCHAR(255) NOT NULL,
				key VARCHAR(512) NOT NULL,
				value JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, key)
			);

			CREATE INDEX idx_variables_workflow_id ON variables(workflow_id);

			-- Records, upserted by (workflow_id, record_id)
			CREATE TABLE records (
				workflow_id VARCHAR(255) NOT NULL,
				record_id VARCHAR(255) NOT NULL,
				record_type VARCHAR(255) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				iteration_node_alias VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, record_id)
			);

			CREATE INDEX idx_records_workflow_id ON records(workflow_id);
			CREATE INDEX idx_records_record_type ON records(workflow_id, record_type);
			CREATE INDEX idx_records_status ON records(workflow_id, status);

			-- Workflow graph nodes; iterate nodes carry config.over
			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				position INT NOT NULL DEFAULT 0,
				alias VARCHAR(255),
				config JSONB DEFAULT '{}',
				enabled BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_type ON workflow_nodes(workflow_id, node_type);
		`,
	}
}
