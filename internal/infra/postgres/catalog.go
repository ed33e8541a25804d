package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ielts-practice-service/internal/domain"
)

// Catalog reads question and section content from Postgres. The catalog is
// owned by the content pipeline; this service only ever reads it.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

const questionColumns = `id, section_id, question_number, question_uid, question_type, question_content, correct_answer, COALESCE(explanation, '')`

func (c *Catalog) QuestionByID(ctx context.Context, id int64) (domain.Question, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	question, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return question, nil
}

func (c *Catalog) QuestionsBySection(ctx context.Context, sectionID int64) ([]domain.Question, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE section_id=$1 ORDER BY question_number`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("load section questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (c *Catalog) SectionByID(ctx context.Context, id int64) (domain.Section, error) {
	var section domain.Section
	err := c.pool.QueryRow(ctx,
		`SELECT id, exam_source, test_number, skill, part_number FROM sections WHERE id=$1`, id).
		Scan(&section.ID, &section.ExamSource, &section.TestNumber, &section.Skill, &section.PartNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Section{}, domain.ErrSectionNotFound
	}
	if err != nil {
		return domain.Section{}, fmt.Errorf("load section: %w", err)
	}
	return section, nil
}

func (c *Catalog) SectionsForTest(ctx context.Context, examSource string, testNumber int, skill string) ([]domain.Section, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, exam_source, test_number, skill, part_number FROM sections
		 WHERE exam_source=$1 AND test_number=$2 AND lower(skill)=lower($3)
		 ORDER BY part_number`, examSource, testNumber, skill)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section
	for rows.Next() {
		var section domain.Section
		if err := rows.Scan(&section.ID, &section.ExamSource, &section.TestNumber, &section.Skill, &section.PartNumber); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

func (c *Catalog) CountQuestions(ctx context.Context, examSource string, testNumber int, skill string) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx,
		`SELECT COUNT(q.id) FROM questions q
		 JOIN sections s ON s.id = q.section_id
		 WHERE s.exam_source=$1 AND s.test_number=$2 AND lower(s.skill)=lower($3)`,
		examSource, testNumber, skill).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (c *Catalog) ExamSources(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT DISTINCT exam_source FROM sections ORDER BY exam_source`)
	if err != nil {
		return nil, fmt.Errorf("list exam sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("scan exam source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (c *Catalog) TestNumbers(ctx context.Context, examSource string) ([]int, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT DISTINCT test_number FROM sections WHERE exam_source=$1 ORDER BY test_number`, examSource)
	if err != nil {
		return nil, fmt.Errorf("list test numbers: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var number int
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("scan test number: %w", err)
		}
		numbers = append(numbers, number)
	}
	return numbers, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var question domain.Question
	err := row.Scan(
		&question.ID,
		&question.SectionID,
		&question.Number,
		&question.UID,
		&question.Type,
		&question.Content,
		&question.CorrectAnswer,
		&question.Explanation,
	)
	return question, err
}
