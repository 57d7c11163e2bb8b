package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG & ROLE ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Institutional hierarchy: university -> faculty -> department -> course.
CREATE TABLE IF NOT EXISTS universities (
    id   VARCHAR(64) PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS faculties (
    id            VARCHAR(64) PRIMARY KEY,
    university_id VARCHAR(64) NOT NULL REFERENCES universities(id),
    name          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS departments (
    id         VARCHAR(64) PRIMARY KEY,
    faculty_id VARCHAR(64) NOT NULL REFERENCES faculties(id),
    name       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS courses (
    id            VARCHAR(64) PRIMARY KEY,
    code          VARCHAR(32) NOT NULL,
    credit_hours  INTEGER NOT NULL,
    department_id VARCHAR(64) NOT NULL REFERENCES departments(id),

    -- Non-positive credits are rejected at lookup time too; the check
    -- keeps bad rows out in the first place.
    CONSTRAINT valid_credit_hours CHECK (credit_hours > 0)
);

CREATE INDEX IF NOT EXISTS idx_courses_department ON courses(department_id);

CREATE TABLE IF NOT EXISTS role_assignments (
    actor_id   VARCHAR(64) NOT NULL,
    role       VARCHAR(32) NOT NULL,
    scope_kind VARCHAR(16) NOT NULL,
    scope_id   VARCHAR(64) NOT NULL,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (actor_id, role, scope_kind, scope_id),
    CONSTRAINT valid_role CHECK (role IN ('lecturer', 'hod', 'exam_officer', 'dean', 'university_admin')),
    CONSTRAINT valid_scope_kind CHECK (scope_kind IN ('course', 'department', 'faculty', 'university'))
);
`

const migration001Down = `
DROP TABLE IF EXISTS role_assignments;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS departments;
DROP TABLE IF EXISTS faculties;
DROP TABLE IF EXISTS universities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: RESULTS, COMPONENTS, GRADES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS results (
    id          VARCHAR(64) PRIMARY KEY,
    student_id  VARCHAR(64) NOT NULL,
    course_id   VARCHAR(64) NOT NULL,
    semester_id VARCHAR(64) NOT NULL,
    status      VARCHAR(20) NOT NULL DEFAULT 'draft',
    version     INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_results_key UNIQUE (student_id, course_id, semester_id),
    CONSTRAINT valid_result_status CHECK (status IN
        ('draft', 'submitted', 'under_review', 'hod_approved', 'approved', 'published', 'rejected')),
    CONSTRAINT valid_version CHECK (version >= 1)
);

CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id, semester_id, course_id);
CREATE INDEX IF NOT EXISTS idx_results_counted ON results(student_id)
    WHERE status IN ('approved', 'published');

CREATE TABLE IF NOT EXISTS result_components (
    id             VARCHAR(64) PRIMARY KEY,
    result_id      VARCHAR(64) NOT NULL REFERENCES results(id) ON DELETE CASCADE,
    name           VARCHAR(100) NOT NULL,
    marks_obtained NUMERIC,
    marks_total    NUMERIC NOT NULL,
    weight         NUMERIC NOT NULL DEFAULT 1.0,
    position       BIGSERIAL,
    created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_component_name UNIQUE (result_id, name),
    CONSTRAINT valid_marks CHECK (
        marks_total >= 0
        AND (marks_obtained IS NULL OR (marks_obtained >= 0 AND marks_obtained <= marks_total))
    ),
    CONSTRAINT valid_weight CHECK (weight >= 0)
);

CREATE INDEX IF NOT EXISTS idx_components_result ON result_components(result_id, position);

CREATE TABLE IF NOT EXISTS grades (
    result_id    VARCHAR(64) PRIMARY KEY REFERENCES results(id) ON DELETE CASCADE,
    total_score  NUMERIC NOT NULL,
    letter_grade VARCHAR(4) NOT NULL,
    grade_point  NUMERIC NOT NULL,
    scale_name   VARCHAR(64) NOT NULL,
    computed_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_score CHECK (total_score >= 0 AND total_score <= 100),
    CONSTRAINT valid_grade_point CHECK (grade_point >= 0)
);
`

const migration002Down = `
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS result_components;
DROP TABLE IF EXISTS results;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: GPA AGGREGATES & AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS semester_gpa (
    student_id     VARCHAR(64) NOT NULL,
    semester_id    VARCHAR(64) NOT NULL,
    gpa            NUMERIC NOT NULL,
    total_credits  INTEGER NOT NULL,
    quality_points NUMERIC NOT NULL,
    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, semester_id),
    CONSTRAINT valid_semester_credits CHECK (total_credits >= 0)
);

CREATE TABLE IF NOT EXISTS cumulative_gpa (
    student_id     VARCHAR(64) PRIMARY KEY,
    cgpa           NUMERIC NOT NULL,
    total_credits  INTEGER NOT NULL,
    quality_points NUMERIC NOT NULL,
    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_cumulative_credits CHECK (total_credits >= 0)
);

-- Append-only. No foreign key to results: entries for denied attempts on
-- unknown results are kept too.
CREATE TABLE IF NOT EXISTS audit_entries (
    id          VARCHAR(64) PRIMARY KEY,
    result_id   VARCHAR(64) NOT NULL,
    seq         BIGINT NOT NULL,
    actor_id    VARCHAR(64) NOT NULL,
    action      VARCHAR(32) NOT NULL,
    from_status VARCHAR(20) NOT NULL DEFAULT '',
    to_status   VARCHAR(20) NOT NULL DEFAULT '',
    outcome     VARCHAR(10) NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    notes       TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    prev_hash   VARCHAR(64) NOT NULL DEFAULT '',
    hash        VARCHAR(64) NOT NULL,

    CONSTRAINT uq_audit_seq UNIQUE (result_id, seq),
    CONSTRAINT valid_outcome CHECK (outcome IN ('success', 'failure'))
);

CREATE OR REPLACE FUNCTION audit_entries_immutable() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'audit_entries is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_audit_entries_immutable ON audit_entries;
CREATE TRIGGER trg_audit_entries_immutable
    BEFORE UPDATE OR DELETE ON audit_entries
    FOR EACH ROW EXECUTE FUNCTION audit_entries_immutable();
`

const migration003Down = `
DROP TRIGGER IF EXISTS trg_audit_entries_immutable ON audit_entries;
DROP FUNCTION IF EXISTS audit_entries_immutable();
DROP TABLE IF EXISTS audit_entries;
DROP TABLE IF EXISTS cumulative_gpa;
DROP TABLE IF EXISTS semester_gpa;
`
