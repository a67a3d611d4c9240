package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// QuestionArmsColumns holds the columns for the "question_arms" table.
	QuestionArmsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString, Size: 100},
		{Name: "question_id", Type: field.TypeString, Size: 64},
		{Name: "topic_key", Type: field.TypeString, Size: 256},
		{Name: "attempts", Type: field.TypeInt},
		{Name: "successes", Type: field.TypeInt},
		{Name: "failures", Type: field.TypeInt},
		{Name: "total_response_time_ms", Type: field.TypeInt64},
		{Name: "alpha", Type: field.TypeFloat64},
		{Name: "beta", Type: field.TypeFloat64},
		{Name: "user_confidence", Type: field.TypeFloat64},
		{Name: "last_attempted_at", Type: field.TypeInt64, Nullable: true},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// QuestionArmsTable holds the schema information for the "question_arms" table.
	QuestionArmsTable = &schema.Table{
		Name:       "question_arms",
		Columns:    QuestionArmsColumns,
		PrimaryKey: []*schema.Column{QuestionArmsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "questionarm_learner_id_question_id",
				Unique:  true,
				Columns: []*schema.Column{QuestionArmsColumns[1], QuestionArmsColumns[2]},
			},
			{
				Name:    "questionarm_learner_id_updated_at",
				Unique:  false,
				Columns: []*schema.Column{QuestionArmsColumns[1], QuestionArmsColumns[13]},
			},
		},
	}

	// TopicArmsColumns holds the columns for the "topic_arms" table.
	TopicArmsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString, Size: 100},
		{Name: "topic_key", Type: field.TypeString, Size: 256},
		{Name: "course", Type: field.TypeString, Size: 64},
		{Name: "topic", Type: field.TypeString, Size: 128},
		{Name: "knowledge_type", Type: field.TypeString, Size: 64},
		{Name: "attempts", Type: field.TypeInt},
		{Name: "successes", Type: field.TypeInt},
		{Name: "failures", Type: field.TypeInt},
		{Name: "total_response_time_ms", Type: field.TypeInt64},
		{Name: "alpha", Type: field.TypeFloat64},
		{Name: "beta", Type: field.TypeFloat64},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// TopicArmsTable holds the schema information for the "topic_arms" table.
	TopicArmsTable = &schema.Table{
		Name:       "topic_arms",
		Columns:    TopicArmsColumns,
		PrimaryKey: []*schema.Column{TopicArmsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "topicarm_learner_id_topic_key",
				Unique:  true,
				Columns: []*schema.Column{TopicArmsColumns[1], TopicArmsColumns[2]},
			},
			{
				Name:    "topicarm_learner_id_updated_at",
				Unique:  false,
				Columns: []*schema.Column{TopicArmsColumns[1], TopicArmsColumns[13]},
			},
		},
	}

	// SyncCheckpointsColumns holds the columns for the "sync_checkpoints" table.
	SyncCheckpointsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString, Size: 100, Unique: true},
		{Name: "checkpoint", Type: field.TypeInt64},
		{Name: "saved_at", Type: field.TypeInt64},
	}
	// SyncCheckpointsTable holds the schema information for the "sync_checkpoints" table.
	SyncCheckpointsTable = &schema.Table{
		Name:       "sync_checkpoints",
		Columns:    SyncCheckpointsColumns,
		PrimaryKey: []*schema.Column{SyncCheckpointsColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		QuestionArmsTable,
		TopicArmsTable,
		SyncCheckpointsTable,
	}
)
