package presenter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tak4da/lemanaMP2/internal/summary"
	"github.com/tak4da/lemanaMP2/internal/survey"
)

const (
	msgGreeting         = "Привет! 👋\nВыбери свой <b>отдел</b> (1–15):"
	msgDepartmentChosen = "Отдел: <b>%d</b> ✅\n\n%s"
	msgManualPrompt     = "Введи число от 0 до %d:\n\n%s"
	msgSaved            = "✅ Данные отправлены!\nОтдел: <b>%d</b>\nДата: <b>%s</b>, Время: <b>%s</b>"
	msgSaveFailed       = "❌ Не удалось записать данные. Ответы сохранены — нажми «Повторить отправку»."
	msgCanceled         = "Опрос сброшен. Нажми /start чтобы начать заново."
	msgSessionLost      = "Сессия не найдена или устарела."
	msgUseButtons       = "Используй кнопки под вопросом или команды /start, /cancel, /today."
	msgBadAnswer        = "Такое значение не подходит для этого вопроса."
	msgBadManualValue   = "Нужно целое число от 0 до 999. Попробуй ещё раз."
	msgBadDepartment    = "Отдел должен быть от 1 до 15."
	msgStaleButton      = "Эта кнопка уже неактуальна."
	msgSendFailed       = "Что-то пошло не так. Попробуй ещё раз."
	msgSummaryFailed    = "Не удалось получить данные из таблицы. Попробуй позже."

	btnNotApplicable = "Не актуально"
	btnManual        = "✍️ Ввести вручную"
	btnRestart       = "📝 ЗАПОЛНИТЬ НОВЫЕ"
	btnRetrySave     = "🔁 ПОВТОРИТЬ ОТПРАВКУ"
)

// departmentKeyboard renders buttons 1..15, five per row.
func departmentKeyboard() [][]Choice {
	var rows [][]Choice
	var row []Choice
	for d := survey.DepartmentMin; d <= survey.DepartmentMax; d++ {
		row = append(row, Choice{
			Label: strconv.Itoa(d),
			Data:  survey.DepartmentCallback(d),
		})
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func answerKeyboard(step int, metric survey.Metric) [][]Choice {
	var rows [][]Choice
	var values []Choice
	for _, v := range metric.Choices {
		values = append(values, Choice{
			Label: strconv.Itoa(v),
			Data:  survey.AnswerCallback(step, v),
		})
	}
	rows = append(rows, values)
	if metric.AllowNA {
		rows = append(rows, []Choice{{Label: btnNotApplicable, Data: survey.AnswerNACallback(step)}})
	}
	rows = append(rows, []Choice{{Label: btnManual, Data: survey.ManualCallback(step)}})
	return rows
}

func restartKeyboard() [][]Choice {
	return [][]Choice{{{Label: btnRestart, Data: survey.StartNewCallback()}}}
}

func retryKeyboard() [][]Choice {
	return [][]Choice{
		{{Label: btnRetrySave, Data: survey.RetrySaveCallback()}},
		{{Label: btnRestart, Data: survey.StartNewCallback()}},
	}
}

func renderSummary(byDept, byMetric summary.Result, titles map[string]string, from, to time.Time) string {
	fromDay := from.Format("02.01.2006")
	toDay := to.Format("02.01.2006")

	var b strings.Builder
	if fromDay == toDay {
		fmt.Fprintf(&b, "📊 Сводка за <b>%s</b>\n", fromDay)
	} else {
		fmt.Fprintf(&b, "📊 Сводка за период <b>%s – %s</b>\n", fromDay, toDay)
	}
	if len(byDept.Keys) == 0 {
		b.WriteString("\nДанных за этот период нет.")
		return b.String()
	}
	b.WriteString("\n")
	for _, key := range byDept.Keys {
		fmt.Fprintf(&b, "Отдел %s: <b>%d</b>\n", key, byDept.Totals[key])
	}
	b.WriteString("\nПо показателям:\n")
	for _, key := range byMetric.Keys {
		title, ok := titles[key]
		if !ok {
			title = key
		}
		fmt.Fprintf(&b, "%s: <b>%d</b>\n", title, byMetric.Totals[key])
	}
	fmt.Fprintf(&b, "\nИтого: <b>%d</b>", byDept.Total)
	return b.String()
}
