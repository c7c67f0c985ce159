package catalog

// File is the shape of one catalog YAML document. A document may declare
// courses, students or both.
type File struct {
	Courses  []Course  `yaml:"courses"`
	Students []Student `yaml:"students"`
}

// Course declares a course with its subjects.
type Course struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Subjects []Subject `yaml:"subjects"`
}

// Subject declares a subject with its topics.
type Subject struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Topics []Topic `yaml:"topics"`
}

// Topic declares a quiz topic and its optional media references.
type Topic struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	VideoURL     string `yaml:"video_url"`
	PDFURL       string `yaml:"pdf_url"`
	ExternalLink string `yaml:"external_link"`
}

// Student declares a student, optionally enrolled in a course.
type Student struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	CourseID string `yaml:"course_id"`
}
