package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

type surveyApi struct {
	svc *survey.Service
}

func registerSurveyAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *survey.Service) {
	api := surveyApi{svc: svc}
	admin := roleMiddleware(user.AdminRoles...)

	sg := g.Group("/surveys", authed)
	sg.GET("", api.query)
	sg.POST("", api.create, admin)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, admin)
	dg.DELETE("", api.destroy, admin)
	dg.PATCH("/status", api.updateStatus, admin)

	dg.GET("/configuration", api.getConfiguration)
	dg.PUT("/configuration", api.updateConfiguration, admin)
	dg.GET("/preview", api.preview)

	dg.GET("/questions", api.queryQuestions)
	dg.POST("/questions", api.addQuestion, admin)
	dg.PUT("/questions/reorder", api.reorderQuestions, admin)
	dg.GET("/questions/:questionId", api.retrieveQuestion)
	dg.PUT("/questions/:questionId", api.updateQuestion, admin)
	dg.DELETE("/questions/:questionId", api.destroyQuestion, admin)

	dg.GET("/links", api.getLinks)
	dg.POST("/links", api.generateLinks, admin)

	dg.GET("/responses", api.queryResponses)
	dg.GET("/responses/:responseId", api.retrieveResponse)
	dg.GET("/statistics", api.statistics)

	dg.POST("/blasts", api.scheduleBlast, admin)
	dg.POST("/blasts/send", api.sendBlast, admin)
	dg.POST("/reminders", api.scheduleReminder, admin)
	dg.POST("/reminders/send", api.sendReminder, admin)
	dg.GET("/schedules", api.querySchedules)
	dg.DELETE("/schedules/:operationId", api.cancelSchedule, admin)
	dg.GET("/email-logs", api.emailLogs)
}

// Surveys

func (api *surveyApi) query(ctx echo.Context) error {
	var filter survey.Filter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	surveys, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing surveys")
	}
	return ctx.JSON(http.StatusOK, surveys)
}

func (api *surveyApi) create(ctx echo.Context) error {
	var in survey.NewSurvey
	if err := bindBody(ctx, &in, "survey"); err != nil {
		return err
	}
	s, err := api.svc.Create(ctx.Request().Context(), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating survey")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *surveyApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting survey")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *surveyApi) update(ctx echo.Context) error {
	var in survey.UpdateSurvey
	if err := bindBody(ctx, &in, "survey"); err != nil {
		return err
	}
	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "updating survey")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *surveyApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting survey")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *surveyApi) updateStatus(ctx echo.Context) error {
	var in survey.StatusUpdate
	if err := bindBody(ctx, &in, "status"); err != nil {
		return err
	}
	s, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "updating survey status")
	}
	return ctx.JSON(http.StatusOK, s)
}

// Configuration & preview

func (api *surveyApi) getConfiguration(ctx echo.Context) error {
	cfg, err := api.svc.GetConfiguration(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting configuration")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *surveyApi) updateConfiguration(ctx echo.Context) error {
	var cfg survey.Configuration
	if err := bindBody(ctx, &cfg, "configuration"); err != nil {
		return err
	}
	cfg, err := api.svc.UpdateConfiguration(ctx.Request().Context(), ctx.Param("id"), cfg)
	if err != nil {
		return errors.Wrap(err, "updating configuration")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *surveyApi) preview(ctx echo.Context) error {
	p, err := api.svc.Preview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "previewing survey")
	}
	return ctx.JSON(http.StatusOK, p)
}

// Questions

func (api *surveyApi) queryQuestions(ctx echo.Context) error {
	questions, err := api.svc.ListQuestions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *surveyApi) addQuestion(ctx echo.Context) error {
	var in survey.QuestionInput
	if err := bindBody(ctx, &in, "question"); err != nil {
		return err
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), ctx.Param("id"), in)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *surveyApi) retrieveQuestion(ctx echo.Context) error {
	q, err := api.svc.GetQuestion(ctx.Request().Context(), ctx.Param("id"), ctx.Param("questionId"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *surveyApi) updateQuestion(ctx echo.Context) error {
	var in survey.QuestionInput
	if err := bindBody(ctx, &in, "question"); err != nil {
		return err
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), ctx.Param("id"), ctx.Param("questionId"), in)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *surveyApi) destroyQuestion(ctx echo.Context) error {
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), ctx.Param("id"), ctx.Param("questionId")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *surveyApi) reorderQuestions(ctx echo.Context) error {
	var in survey.Reorder
	if err := bindBody(ctx, &in, "reorder"); err != nil {
		return err
	}
	questions, err := api.svc.ReorderQuestions(ctx.Request().Context(), ctx.Param("id"), in)
	if err != nil {
		return errors.Wrap(err, "reordering questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

// Links

func (api *surveyApi) getLinks(ctx echo.Context) error {
	links, err := api.svc.GetLinks(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting links")
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *surveyApi) generateLinks(ctx echo.Context) error {
	links, err := api.svc.GenerateLinks(ctx.Request().Context(), ctx.Param("id"), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "generating links")
	}
	return ctx.JSON(http.StatusOK, links)
}

// Responses

func (api *surveyApi) queryResponses(ctx echo.Context) error {
	filter := survey.ResponseFilter{
		SurveyID:      ctx.Param("id"),
		Email:         ctx.QueryParam("email"),
		ApplicationID: ctx.QueryParam("application_id"),
		DepartmentID:  ctx.QueryParam("department_id"),
	}
	var err error
	if filter.From, err = dateQuery(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = dateQuery(ctx, "to"); err != nil {
		return err
	}
	responses, err := api.svc.ListResponses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing responses")
	}
	return ctx.JSON(http.StatusOK, responses)
}

func (api *surveyApi) retrieveResponse(ctx echo.Context) error {
	r, err := api.svc.GetResponse(ctx.Request().Context(), ctx.Param("id"), ctx.Param("responseId"))
	if err != nil {
		return errors.Wrap(err, "getting response")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *surveyApi) statistics(ctx echo.Context) error {
	stats, err := api.svc.Statistics(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Delivery

func (api *surveyApi) scheduleBlast(ctx echo.Context) error {
	var in schedule.NewOperation
	if err := bindBody(ctx, &in, "schedule"); err != nil {
		return err
	}
	op, err := api.svc.ScheduleBlast(ctx.Request().Context(), ctx.Param("id"), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "scheduling blast")
	}
	return ctx.JSON(http.StatusCreated, op)
}

func (api *surveyApi) scheduleReminder(ctx echo.Context) error {
	var in schedule.NewOperation
	if err := bindBody(ctx, &in, "schedule"); err != nil {
		return err
	}
	op, err := api.svc.ScheduleReminder(ctx.Request().Context(), ctx.Param("id"), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "scheduling reminder")
	}
	return ctx.JSON(http.StatusCreated, op)
}

func (api *surveyApi) sendBlast(ctx echo.Context) error {
	var in survey.SendNow
	if err := bindBody(ctx, &in, "send"); err != nil {
		return err
	}
	res, err := api.svc.SendBlastNow(ctx.Request().Context(), ctx.Param("id"), in)
	if err != nil {
		return errors.Wrap(err, "sending blast")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *surveyApi) sendReminder(ctx echo.Context) error {
	var in survey.SendNow
	if err := bindBody(ctx, &in, "send"); err != nil {
		return err
	}
	res, err := api.svc.SendReminderNow(ctx.Request().Context(), ctx.Param("id"), in)
	if err != nil {
		return errors.Wrap(err, "sending reminder")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *surveyApi) querySchedules(ctx echo.Context) error {
	opType := ctx.QueryParam("type")
	switch opType {
	case "", schedule.TypeBlast, schedule.TypeReminder:
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "must be Blast or Reminder"})
	}
	ops, err := api.svc.ListScheduled(ctx.Request().Context(), ctx.Param("id"), opType)
	if err != nil {
		return errors.Wrap(err, "listing scheduled operations")
	}
	return ctx.JSON(http.StatusOK, ops)
}

func (api *surveyApi) cancelSchedule(ctx echo.Context) error {
	if err := api.svc.CancelScheduled(ctx.Request().Context(), ctx.Param("id"), ctx.Param("operationId")); err != nil {
		return errors.Wrap(err, "cancelling scheduled operation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *surveyApi) emailLogs(ctx echo.Context) error {
	logs, err := api.svc.EmailLogs(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing email logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

// dateQuery parses an RFC 3339 timestamp or a plain date; a missing value is the zero time.
func dateQuery(ctx echo.Context, name string) (time.Time, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"})
}
