package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"meterbot/internal/billing"
	"meterbot/internal/core"
)

const (
	msgNoHistory       = "Нет исторических данных"
	msgInvalidFormat   = "❌ Пожалуйста, введите корректное число"
	msgNegative        = "❌ Показания не могут быть отрицательными"
	msgTooLarge        = "❌ Показания кажутся слишком большими"
	msgBelowPrevious   = "❌ Новые показания меньше предыдущих!"
	msgNoReadings      = "❌ Нет сохраненных показаний. Пожалуйста, внесите показания сначала!"
	msgEmptyHistory    = "📜 История расчетов пуста"
	msgPeriodConfirmed = "❌ Расчет за %s уже подтвержден"
	msgUnknown         = "⚠️ Неизвестная команда. Используйте меню или наберите /help"

	timestampLayout = "02.01.2006 15:04"
)

// Render formats an outcome as a chat reply.
func Render(out billing.Outcome) string {
	switch out.Kind {
	case billing.KindPrompt:
		return renderPrompt(out)
	case billing.KindAccepted:
		return renderAccepted(out)
	case billing.KindRejected, billing.KindEmpty:
		return renderRejected(out)
	case billing.KindBreakdown:
		return renderBreakdown(out)
	case billing.KindHistory:
		return renderHistory(out.History)
	case billing.KindWelcome:
		return renderWelcome(out)
	case billing.KindHelp:
		return renderHelp(out)
	default:
		return msgUnknown
	}
}

func renderPrompt(out billing.Outcome) string {
	prev := msgNoHistory
	if out.HasPrevious {
		prev = out.Previous.String()
	}
	return fmt.Sprintf("Введите показания %s за %s:\nПредыдущие показания: %s",
		Label(out.Category), out.Period.Label(), prev)
}

func renderAccepted(out billing.Outcome) string {
	if !out.Billable {
		return fmt.Sprintf("✅ Показания %s приняты: %s\nРасход будет рассчитан со следующего месяца",
			Label(out.Category), out.Value)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Показания %s за %s приняты:\n", Label(out.Category), out.Period.Label())
	fmt.Fprintf(&b, "Предыдущие: %s\n", out.Previous)
	fmt.Fprintf(&b, "Текущие: %s\n", out.Value)
	fmt.Fprintf(&b, "Расход: %s\n", out.Consumption)
	fmt.Fprintf(&b, "Сумма: %s", money(out.Cost))
	return b.String()
}

func renderRejected(out billing.Outcome) string {
	switch out.Reason {
	case billing.ReasonInvalidFormat:
		return msgInvalidFormat
	case billing.ReasonOutOfRange:
		if errors.Is(out.Err, core.ErrNegativeReading) {
			return msgNegative
		}
		return msgTooLarge
	case billing.ReasonNegativeConsumption:
		return msgBelowPrevious
	case billing.ReasonNoReadings:
		return msgNoReadings
	case billing.ReasonEmptyHistory:
		return msgEmptyHistory
	case billing.ReasonPeriodConfirmed:
		return fmt.Sprintf(msgPeriodConfirmed, out.Period.Label())
	default:
		return msgUnknown
	}
}

func renderBreakdown(out billing.Outcome) string {
	var b strings.Builder
	calc := out.Calculation
	if out.Final {
		fmt.Fprintf(&b, "💰 Расчет платежа за %s:\n\n", calc.Period.Label())
	} else {
		fmt.Fprintf(&b, "👀 Предварительный расчет за %s:\n\n", calc.Period.Label())
	}
	writeItems(&b, calc.Items)
	if out.Final {
		fmt.Fprintf(&b, "\n📊 Общая сумма: %s", money(calc.Total))
		return b.String()
	}
	fmt.Fprintf(&b, "\n📊 Предварительная сумма: %s\n", money(calc.Total))
	fmt.Fprintf(&b, "\nДля подтверждения показаний и перехода к следующему месяцу нажмите '%s'", ButtonCalculate)
	return b.String()
}

func renderHistory(entries []core.Calculation) string {
	var b strings.Builder
	b.WriteString("📜 История последних расчетов:\n\n")
	for _, calc := range entries {
		fmt.Fprintf(&b, "🕒 %s (%s)\n", calc.CreatedAt.Format(timestampLayout), calc.Period.Label())
		writeItems(&b, calc.Items)
		fmt.Fprintf(&b, "Итого: %s\n\n", money(calc.Total))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeItems(b *strings.Builder, items []core.LineItem) {
	for _, it := range items {
		if it.Baseline {
			fmt.Fprintf(b, "%s: %s (начальные показания, расход со следующего месяца)\n", Label(it.Category), it.Current)
			continue
		}
		fmt.Fprintf(b, "%s: %s × %s = %s\n", Label(it.Category), it.Consumption, it.Rate, money(it.Cost))
	}
}

func renderWelcome(out billing.Outcome) string {
	var b strings.Builder
	b.WriteString("👋 Добро пожаловать в бот учета коммунальных услуг!\n\n")
	fmt.Fprintf(&b, "Текущий месяц: %s\n\n", out.Period.Label())
	fmt.Fprintf(&b, "Показания за %s:\n", strings.ToLower(out.Period.Prev().Label()))
	for _, c := range core.Categories() {
		if c == core.ElectricityNight {
			continue
		}
		if c == core.ElectricityDay {
			fmt.Fprintf(&b, "⚡ Day/Night: %s\n", msgNoHistory)
			continue
		}
		v, _ := out.Baselines.Baseline(c)
		fmt.Fprintf(&b, "%s: %s\n", Label(c), v)
	}
	b.WriteString("\nВыберите опцию из меню ниже:\n\n")
	fmt.Fprintf(&b, "%s - Показания воды (%s/м3)\n", ButtonWater, core.Currency)
	fmt.Fprintf(&b, "%s - Показания электричества дневной тариф (%s/кВт)\n", ButtonDay, core.Currency)
	fmt.Fprintf(&b, "%s - Показания электричества ночной тариф (%s/кВт)\n", ButtonNight, core.Currency)
	fmt.Fprintf(&b, "%s - Показания газа (%s/м3)\n", ButtonGas, core.Currency)
	fmt.Fprintf(&b, "%s - Предварительный расчет\n", ButtonPreview)
	fmt.Fprintf(&b, "%s - Рассчитать общую сумму\n", ButtonCalculate)
	fmt.Fprintf(&b, "%s - История расчетов", ButtonHistory)
	return b.String()
}

var helpNames = map[core.Category]string{
	core.Water:            "Вода",
	core.ElectricityDay:   "Электричество день",
	core.ElectricityNight: "Электричество ночь",
	core.Gas:              "Газ",
}

func renderHelp(out billing.Outcome) string {
	var b strings.Builder
	b.WriteString("🔍 Как пользоваться ботом:\n\n")
	fmt.Fprintf(&b, "Текущий месяц: %s\n\n", out.Period.Label())
	b.WriteString("1. Введите показания счетчиков:\n")
	for _, c := range core.Categories() {
		fmt.Fprintf(&b, "   %s - %s (%s %s/%s)\n", Label(c), helpNames[c], out.Rates.Rate(c), core.Currency, c.Unit())
	}
	b.WriteString("\n2. Будет рассчитана разница с предыдущим месяцем\n\n")
	fmt.Fprintf(&b, "3. Нажмите %s для расчета суммы\n\n", ButtonCalculate)
	fmt.Fprintf(&b, "%s - Перезапустить бота\n", CommandStart)
	fmt.Fprintf(&b, "%s - Показать эту справку", CommandHelp)
	return b.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + core.Currency
}
