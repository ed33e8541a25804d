package memory

import (
	"context"
	"sort"
	"strings"

	"ielts-practice-service/internal/domain"
)

// Catalog is a static in-memory question/section catalog (useful for tests and
// the demo mode without Postgres).
type Catalog struct {
	sections  map[int64]domain.Section
	questions map[int64]domain.Question
}

func NewCatalog(sections []domain.Section, questions []domain.Question) *Catalog {
	c := &Catalog{
		sections:  make(map[int64]domain.Section, len(sections)),
		questions: make(map[int64]domain.Question, len(questions)),
	}
	for _, section := range sections {
		c.sections[section.ID] = section
	}
	for _, question := range questions {
		c.questions[question.ID] = question
	}
	return c
}

func (c *Catalog) QuestionByID(_ context.Context, id int64) (domain.Question, error) {
	question, ok := c.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (c *Catalog) QuestionsBySection(_ context.Context, sectionID int64) ([]domain.Question, error) {
	var questions []domain.Question
	for _, question := range c.questions {
		if question.SectionID == sectionID {
			questions = append(questions, question)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })
	return questions, nil
}

func (c *Catalog) SectionByID(_ context.Context, id int64) (domain.Section, error) {
	section, ok := c.sections[id]
	if !ok {
		return domain.Section{}, domain.ErrSectionNotFound
	}
	return section, nil
}

func (c *Catalog) SectionsForTest(_ context.Context, examSource string, testNumber int, skill string) ([]domain.Section, error) {
	var sections []domain.Section
	for _, section := range c.sections {
		if section.ExamSource == examSource && section.TestNumber == testNumber && strings.EqualFold(section.Skill, skill) {
			sections = append(sections, section)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].PartNumber < sections[j].PartNumber })
	return sections, nil
}

func (c *Catalog) CountQuestions(ctx context.Context, examSource string, testNumber int, skill string) (int, error) {
	sections, err := c.SectionsForTest(ctx, examSource, testNumber, skill)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, section := range sections {
		for _, question := range c.questions {
			if question.SectionID == section.ID {
				total++
			}
		}
	}
	return total, nil
}

func (c *Catalog) ExamSources(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var sources []string
	for _, section := range c.sections {
		if _, ok := seen[section.ExamSource]; !ok {
			seen[section.ExamSource] = struct{}{}
			sources = append(sources, section.ExamSource)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func (c *Catalog) TestNumbers(_ context.Context, examSource string) ([]int, error) {
	seen := make(map[int]struct{})
	var numbers []int
	for _, section := range c.sections {
		if section.ExamSource != examSource {
			continue
		}
		if _, ok := seen[section.TestNumber]; !ok {
			seen[section.TestNumber] = struct{}{}
			numbers = append(numbers, section.TestNumber)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}
