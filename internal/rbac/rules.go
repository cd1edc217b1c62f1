package rbac

import "github.com/mind-engage/engineering-lms/internal/lms"

const (
	PermDashboard   Perm = "page:dashboard"
	PermCourses     Perm = "page:courses"
	PermCourse      Perm = "page:course"
	PermModule      Perm = "page:module"
	PermAdmin       Perm = "page:admin"
	PermQuizAnswer  Perm = "quiz:answer"
	PermExercise    Perm = "exercise:submit"
	PermUsersImport Perm = "users:bulk_upsert"
)

var learner = []Perm{
	PermDashboard,
	PermCourses,
	PermCourse,
	PermModule,
	PermQuizAnswer,
	PermExercise,
}

// DefaultPolicy: only admin reaches the admin dashboard and the user import.
var DefaultPolicy = Policy{
	lms.RoleStudent:    learner,
	lms.RoleInstructor: learner,
	lms.RoleAdmin:      {"*"},
}
