package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Description     string         `gorm:"column:description;type:text" json:"description"`
	Category        string         `gorm:"column:category" json:"category"`
	Level           string         `gorm:"column:level" json:"level"`
	DurationInWeeks int            `gorm:"column:duration_in_weeks;not null;default:0" json:"duration_in_weeks"`
	Tags            datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	IsActive        bool           `gorm:"column:is_active;not null;default:false;index" json:"is_active"`

	Modules      []*Module            `gorm:"foreignKey:CourseID;references:ID" json:"modules,omitempty"`
	Descriptions []*CourseDescription `gorm:"foreignKey:CourseID;references:ID" json:"descriptions,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

// CourseDescription is one unit of the course introduction sequence, delivered
// one unit per learner turn before module content starts.
type CourseDescription struct {
	ID       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course   *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Text     string         `gorm:"column:text;type:text;not null" json:"text"`
	Images   datatypes.JSON `gorm:"column:images;type:jsonb" json:"images"`
	Position int            `gorm:"column:position;not null;default:1" json:"position"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseDescription) TableName() string { return "course_description" }

// DescriptionImage is one element of CourseDescription.Images.
type DescriptionImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type Module struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course   *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Title    string    `gorm:"column:title;not null" json:"title"`
	Content  string    `gorm:"column:content;type:text" json:"content"`

	// Order is contiguous 1..N within a course; mutations renumber.
	Order int `gorm:"column:module_order;not null;default:1;index" json:"order"`

	Topics []*Topic `gorm:"foreignKey:ModuleID;references:ID" json:"topics,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Module) TableName() string { return "module" }

type Topic struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID uuid.UUID `gorm:"type:uuid;not null;index" json:"module_id"`
	Module   *Module   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	Title    string    `gorm:"column:title;not null" json:"title"`
	Content  string    `gorm:"column:content;type:text" json:"content"`
	Order    int       `gorm:"column:topic_order;not null;default:1;index" json:"order"`
	IsActive bool      `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	Paragraphs []*Paragraph `gorm:"foreignKey:TopicID;references:ID" json:"paragraphs,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Topic) TableName() string { return "topic" }

type Paragraph struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`
	Topic   *Topic    `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID;references:ID" json:"topic,omitempty"`
	Content string    `gorm:"column:content;type:text;not null" json:"content"`
	Order   int       `gorm:"column:paragraph_order;not null;default:1;index" json:"order"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Paragraph) TableName() string { return "paragraph" }
