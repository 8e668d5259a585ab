package handlers

import (
	"fmt"
	"net/http"

	"github.com/1282saa/paperone/pkg/api"

	"github.com/go-chi/chi/v5"
)

// Placeholder routes kept so clients get a stable answer while the features
// are built.

func stub(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.Message(w, http.StatusOK, message)
	}
}

func stubWithID(param, format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.Message(w, http.StatusOK, fmt.Sprintf(format, chi.URLParam(r, param)))
	}
}

// CalendarRoutes serves /api/v1/calendar.
func CalendarRoutes(r chi.Router) {
	r.Get("/ddays", stub("D-Day 목록 - 구현 예정"))
	r.Post("/ddays", stub("D-Day 생성 - 구현 예정"))
	r.Delete("/ddays/{dday_id}", stubWithID("dday_id", "D-Day %s 삭제 - 구현 예정"))
	r.Get("/schedules", stub("학습 일정 목록 - 구현 예정"))
	r.Post("/schedules", stub("학습 일정 생성 - 구현 예정"))
}

// TaskRoutes serves /api/v1/tasks.
func TaskRoutes(r chi.Router) {
	r.Get("/", stub("오늘의 할 일 목록 - 구현 예정"))
	r.Post("/", stub("할 일 생성 - 구현 예정"))
	r.Patch("/{task_id}", stubWithID("task_id", "할 일 %s 업데이트 - 구현 예정"))
	r.Post("/{task_id}/complete", stubWithID("task_id", "할 일 %s 완료 - 구현 예정"))
	r.Delete("/{task_id}", stubWithID("task_id", "할 일 %s 삭제 - 구현 예정"))
}

// StatisticsRoutes serves /api/v1/statistics.
func StatisticsRoutes(r chi.Router) {
	r.Get("/home", stub("홈 통계 - 구현 예정"))
	r.Get("/daily", stub("일별 통계 - 구현 예정"))
	r.Get("/weekly", stub("주간 통계 - 구현 예정"))
}

// LearningRoutes serves /api/v1/learning.
func LearningRoutes(r chi.Router) {
	r.Get("/subjects", stub("과목 목록 - 구현 예정"))
	r.Post("/subjects", stub("과목 생성 - 구현 예정"))
	r.Get("/sessions", stub("학습 세션 목록 - 구현 예정"))
	r.Post("/sessions", stub("학습 세션 시작 - 구현 예정"))
	r.Patch("/sessions/{session_id}/end", stubWithID("session_id", "세션 %s 종료 - 구현 예정"))
	r.Get("/blank-sheets", stub("백지 복습 목록 - 구현 예정"))
	r.Post("/blank-sheets", stub("백지 복습 생성 - 구현 예정"))
	r.Post("/blank-sheets/{sheet_id}/review", stubWithID("sheet_id", "백지 %s 복습 - 구현 예정"))
}

// questionRoutes adds the AI question placeholders under /api/v1/ai.
func questionRoutes(r chi.Router) {
	r.Post("/generate-question", stub("AI 문제 생성 - 구현 예정"))
	r.Get("/questions", stub("생성된 문제 목록 - 구현 예정"))
}
