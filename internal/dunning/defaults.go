package dunning

import (
	"context"
	"fmt"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// TemplateStore is the template persistence surface used by seeding.
// Implemented by db.Repository.
type TemplateStore interface {
	CountTemplates(ctx context.Context) (int, error)
	UpsertTemplate(ctx context.Context, t *db.Template) error
	DeleteAllTemplates(ctx context.Context) error
}

type templateKey struct {
	stage   db.Stage
	variant db.Variant
	channel db.Channel
}

type templateText struct {
	subject string
	body    string
}

const companyFooter = "Z poważaniem,\n{firma_nazwa}\n{firma_adres}\nNIP: {firma_nip}"

const companyFooterContact = companyFooter + "\nOsoba kontaktowa: {firma_osoba}"

var defaultTemplates = map[templateKey]templateText{
	// Stage 1: pre-due reminder, single invoice.
	{db.StagePreDue, db.VariantLekka, db.ChannelEmail}: {
		subject: "Informacja o zbliżającym się terminie płatności faktury {nr_faktury}",
		body: "Szanowni Państwo,\n\nuprzejmie informujemy, że zbliża się termin płatności faktury nr {nr_faktury} na kwotę {kwota} {waluta}, wystawionej dnia {data_wystawienia}, z terminem płatności {termin_platnosci}.\n\nProsimy o terminowe uregulowanie należności.\n\n" + companyFooter,
	},
	{db.StagePreDue, db.VariantLekka, db.ChannelSMS}: {
		body: "Przypominamy o zbliżającym się terminie płatności faktury {nr_faktury} na kwotę {kwota} {waluta} (termin: {termin_platnosci}). {firma_nazwa}",
	},
	{db.StagePreDue, db.VariantStandardowa, db.ChannelEmail}: {
		subject: "Przypomnienie o terminie płatności faktury {nr_faktury}",
		body: "Szanowni Państwo,\n\nprzypominamy, że termin płatności faktury nr {nr_faktury} na kwotę {kwota} {waluta} upływa dnia {termin_platnosci}.\n\nFaktura została wystawiona dnia {data_wystawienia}. Prosimy o terminowe uregulowanie płatności na wskazany rachunek bankowy.\n\nW przypadku dokonania wpłaty prosimy o potraktowanie niniejszej wiadomości jako bezprzedmiotowej.\n\n" + companyFooter,
	},
	{db.StagePreDue, db.VariantStandardowa, db.ChannelSMS}: {
		body: "Przypominamy: termin płatności faktury {nr_faktury} ({kwota} {waluta}) upływa {termin_platnosci}. Prosimy o terminową wpłatę. {firma_nazwa}",
	},
	{db.StagePreDue, db.VariantOstra, db.ChannelEmail}: {
		subject: "PILNE: Termin płatności faktury {nr_faktury}",
		body: "Szanowni Państwo,\n\nniniejszym przypominamy o konieczności uregulowania faktury nr {nr_faktury} na kwotę {kwota} {waluta}. Termin płatności upływa dnia {termin_platnosci}.\n\nBrak terminowej wpłaty może skutkować naliczeniem odsetek ustawowych oraz podjęciem dalszych działań windykacyjnych.\n\nProsimy o niezwłoczne uregulowanie należności.\n\n" + companyFooter,
	},
	{db.StagePreDue, db.VariantOstra, db.ChannelSMS}: {
		body: "PILNE: Termin płatności FV {nr_faktury} ({kwota} {waluta}) upływa {termin_platnosci}. Brak wpłaty = odsetki i windykacja. {firma_nazwa}",
	},

	// Stage 2: amicable reminder, includes obligations table.
	{db.StageReminder, db.VariantLekka, db.ChannelEmail}: {
		subject: "Uprzejme przypomnienie o płatności – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nzwracamy się z uprzejmą prośbą o uregulowanie zaległej płatności wynikającej z faktury nr {nr_faktury} na kwotę {kwota} {waluta}, której termin płatności upłynął dnia {termin_platnosci}.\n\nJeśli płatność została już dokonana, prosimy o zignorowanie niniejszej wiadomości.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageReminder, db.VariantLekka, db.ChannelSMS}: {
		body: "Przypominamy o zaległej FV {nr_faktury} ({kwota} {waluta}, termin: {termin_platnosci}). Łączne zobowiązania: {suma_zobowiazan}, w tym przeterminowane: {suma_przeterminowanych}. {firma_nazwa}",
	},
	{db.StageReminder, db.VariantStandardowa, db.ChannelEmail}: {
		subject: "Przypomnienie o nieuregulowanej płatności – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\ninformujemy, że do dnia dzisiejszego nie odnotowaliśmy wpłaty z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta}. Termin płatności upłynął dnia {termin_platnosci}.\n\nUprzejmie prosimy o pilne uregulowanie zaległości.\n\n{tabela_zobowiazan}\n\nW razie pytań prosimy o kontakt.\n\n" + companyFooterContact,
	},
	{db.StageReminder, db.VariantStandardowa, db.ChannelSMS}: {
		body: "Zaległa FV {nr_faktury} ({kwota} {waluta}, po terminie od {termin_platnosci}). Łączne zobowiązania: {suma_zobowiazan}, w tym przeterminowane: {suma_przeterminowanych}. Prosimy o pilną wpłatę. {firma_nazwa}",
	},
	{db.StageReminder, db.VariantOstra, db.ChannelEmail}: {
		subject: "ZALEGŁOŚĆ PŁATNICZA – wezwanie do uregulowania – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nstwierdzamy brak wpłaty z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta}, której termin płatności upłynął dnia {termin_platnosci}.\n\nWzywamy do niezwłocznego uregulowania zaległości. Dalsze opóźnienie skutkować będzie naliczeniem odsetek ustawowych za opóźnienie w transakcjach handlowych.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageReminder, db.VariantOstra, db.ChannelSMS}: {
		body: "ZALEGŁOŚĆ: FV {nr_faktury} ({kwota} {waluta}) po terminie od {termin_platnosci}. Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wymagana natychmiastowa wpłata. {firma_nazwa}",
	},

	// Stage 3: payment demand (monit).
	{db.StageDemand, db.VariantLekka, db.ChannelEmail}: {
		subject: "Monit – zaległość z tytułu faktury {nr_faktury}",
		body: "Szanowni Państwo,\n\npomimo wcześniejszych przypomnień nie odnotowaliśmy wpłaty z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta}. Termin płatności upłynął dnia {termin_platnosci}.\n\nProsimy o uregulowanie zaległości w najkrótszym możliwym terminie.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageDemand, db.VariantLekka, db.ChannelSMS}: {
		body: "Monit: FV {nr_faktury} ({kwota} {waluta}) nieopłacona od {termin_platnosci}. Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Prosimy o kontakt. {firma_nazwa}",
	},
	{db.StageDemand, db.VariantStandardowa, db.ChannelEmail}: {
		subject: "MONIT PŁATNOŚCI – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nniniejszym wzywamy do uregulowania zaległej należności wynikającej z faktury nr {nr_faktury} na kwotę {kwota} {waluta}. Termin płatności upłynął dnia {termin_platnosci}.\n\nInformujemy, że od kwot przeterminowanych naliczane są odsetki ustawowe za opóźnienie w transakcjach handlowych.\n\nBrak wpłaty w ciągu 7 dni skutkować będzie podjęciem dalszych kroków windykacyjnych.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageDemand, db.VariantStandardowa, db.ChannelSMS}: {
		body: "MONIT: FV {nr_faktury} ({kwota} {waluta}) przeterminowana od {termin_platnosci}. Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wpłata w 7 dni. {firma_nazwa}",
	},
	{db.StageDemand, db.VariantOstra, db.ChannelEmail}: {
		subject: "MONIT – PILNE WEZWANIE DO ZAPŁATY – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\npomimo wcześniejszych wezwań faktura nr {nr_faktury} na kwotę {kwota} {waluta} pozostaje nieuregulowana. Termin płatności upłynął dnia {termin_platnosci}.\n\nStanowczo wzywamy do natychmiastowego uregulowania całości zobowiązań. Brak wpłaty w ciągu 5 dni roboczych spowoduje przekazanie sprawy do dalszego postępowania windykacyjnego, co wiązać się będzie z dodatkowymi kosztami po Państwa stronie.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageDemand, db.VariantOstra, db.ChannelSMS}: {
		body: "MONIT PILNY: FV {nr_faktury} ({kwota} {waluta}) przeterminowana. Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Brak wpłaty w 5 dni = windykacja. {firma_nazwa}",
	},

	// Stage 4: formal call for payment.
	{db.StageFormalNotice, db.VariantLekka, db.ChannelEmail}: {
		subject: "Wezwanie do zapłaty – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nwobec braku uregulowania zaległości z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta} (termin płatności: {termin_platnosci}), niniejszym wzywamy do zapłaty całości zobowiązań.\n\nProsimy o wpłatę w terminie 7 dni od daty otrzymania niniejszego wezwania.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFormalNotice, db.VariantLekka, db.ChannelSMS}: {
		body: "Wezwanie do zapłaty: FV {nr_faktury} ({kwota} {waluta}). Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Termin: 7 dni. {firma_nazwa}",
	},
	{db.StageFormalNotice, db.VariantStandardowa, db.ChannelEmail}: {
		subject: "WEZWANIE DO ZAPŁATY – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nniniejszym wzywamy do niezwłocznego uregulowania zaległych zobowiązań wynikających z faktury nr {nr_faktury} na kwotę {kwota} {waluta}. Termin płatności upłynął dnia {termin_platnosci}.\n\nŻądamy dokonania wpłaty w nieprzekraczalnym terminie 7 dni od otrzymania niniejszego wezwania. W przypadku braku wpłaty sprawa zostanie skierowana na drogę postępowania sądowego, co wiązać się będzie z obciążeniem Państwa kosztami postępowania, kosztami zastępstwa procesowego oraz odsetkami.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFormalNotice, db.VariantStandardowa, db.ChannelSMS}: {
		body: "WEZWANIE DO ZAPŁATY: FV {nr_faktury} ({kwota} {waluta}), termin minął {termin_platnosci}. Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wpłata w 7 dni lub sąd. {firma_nazwa}",
	},
	{db.StageFormalNotice, db.VariantOstra, db.ChannelEmail}: {
		subject: "WEZWANIE DO ZAPŁATY – OSTATECZNE OSTRZEŻENIE – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nniniejszym kategorycznie wzywamy do natychmiastowego uregulowania zaległych zobowiązań z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta} (termin płatności: {termin_platnosci}).\n\nInformujemy, że brak wpłaty pełnej kwoty zobowiązań w terminie 5 dni roboczych od daty niniejszego wezwania skutkować będzie:\n- naliczeniem odsetek ustawowych za opóźnienie w transakcjach handlowych,\n- obciążeniem kosztami windykacji (równowartość 40/70/100 EUR rekompensaty),\n- skierowaniem sprawy na drogę sądową.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFormalNotice, db.VariantOstra, db.ChannelSMS}: {
		body: "OSTATNIE OSTRZEŻENIE: FV {nr_faktury} ({kwota} {waluta}). Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wpłata w 5 dni lub sąd + koszty. {firma_nazwa}",
	},

	// Stage 5: final pre-court notice.
	{db.StageFinalNotice, db.VariantLekka, db.ChannelEmail}: {
		subject: "Ostateczne przedsądowe wezwanie do zapłaty – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nniniejszym kierujemy ostateczne przedsądowe wezwanie do zapłaty z tytułu faktury nr {nr_faktury} na kwotę {kwota} {waluta} (termin płatności: {termin_platnosci}).\n\nWzywamy do uregulowania pełnej kwoty zobowiązań w terminie 7 dni od daty doręczenia niniejszego wezwania. Brak wpłaty skutkować będzie skierowaniem sprawy na drogę postępowania sądowego.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFinalNotice, db.VariantLekka, db.ChannelSMS}: {
		body: "Ostateczne wezwanie przedsądowe: FV {nr_faktury} ({kwota} {waluta}). Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wpłata w 7 dni lub sąd. {firma_nazwa}",
	},
	{db.StageFinalNotice, db.VariantStandardowa, db.ChannelEmail}: {
		subject: "OSTATECZNE PRZEDSĄDOWE WEZWANIE DO ZAPŁATY – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\nniniejszym pismem kierujemy ostateczne przedsądowe wezwanie do zapłaty kwoty wynikającej z faktury nr {nr_faktury} na kwotę {kwota} {waluta}, z terminem płatności {termin_platnosci}.\n\nWzywamy do uregulowania całości zobowiązań w nieprzekraczalnym terminie 5 dni roboczych od daty doręczenia niniejszego wezwania.\n\nInformujemy, że niniejsze wezwanie stanowi ostateczną próbę polubownego rozwiązania sporu. Brak terminowej wpłaty skutkować będzie niezwłocznym skierowaniem sprawy na drogę postępowania sądowego, w wyniku czego zostaną Państwo obciążeni pełnymi kosztami postępowania sądowego, egzekucyjnego, kosztami zastępstwa procesowego oraz odsetkami ustawowymi za opóźnienie.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFinalNotice, db.VariantStandardowa, db.ChannelSMS}: {
		body: "OSTATECZNE WEZWANIE PRZEDSĄDOWE: FV {nr_faktury} ({kwota} {waluta}). Zobowiązania: {suma_zobowiazan}, przeterminowane: {suma_przeterminowanych}. Wpłata w 5 dni lub sąd. {firma_nazwa}",
	},
	{db.StageFinalNotice, db.VariantOstra, db.ChannelEmail}: {
		subject: "OSTATECZNE PRZEDSĄDOWE WEZWANIE DO ZAPŁATY – {kontrahent_nazwa}",
		body: "Szanowni Państwo,\n\ndziałając w imieniu {firma_nazwa}, NIP: {firma_nip}, z siedzibą: {firma_adres}, niniejszym kierujemy OSTATECZNE PRZEDSĄDOWE WEZWANIE DO ZAPŁATY.\n\nPomimo wielokrotnych wezwań faktura nr {nr_faktury} na kwotę {kwota} {waluta} (termin płatności: {termin_platnosci}) pozostaje nieuregulowana.\n\nKATEGORYCZNIE ŻĄDAMY uregulowania pełnej kwoty zobowiązań w terminie 3 dni roboczych od daty doręczenia niniejszego wezwania.\n\nW przypadku bezskutecznego upływu wyznaczonego terminu, bez odrębnego zawiadomienia:\n1. Sprawa zostanie skierowana na drogę postępowania sądowego.\n2. Zostanie złożony wniosek o wpis do rejestru dłużników BIG.\n3. Państwa firma zostanie obciążona pełnymi kosztami: sądowymi, egzekucyjnymi, zastępstwa procesowego, odsetkami ustawowymi za opóźnienie w transakcjach handlowych oraz rekompensatą za koszty odzyskiwania należności.\n\nNiniejsze wezwanie stanowi ostateczną próbę polubownego zakończenia sprawy.\n\n{tabela_zobowiazan}\n\n" + companyFooterContact,
	},
	{db.StageFinalNotice, db.VariantOstra, db.ChannelSMS}: {
		body: "OSTATECZNE WEZWANIE PRZEDSĄDOWE! Zaległości: {suma_przeterminowanych}. Łącznie: {suma_zobowiazan}. Wpłata w 3 dni lub sąd + BIG + pełne koszty. {firma_nazwa}",
	},
}

// allTemplates returns the full default set: one row per (stage, variant,
// channel) triple, with BRAK rows empty so the opt-out path never has a
// message to send.
func allTemplates() []*db.Template {
	out := make([]*db.Template, 0, len(db.Stages())*len(db.Variants())*len(db.Channels()))
	for _, stage := range db.Stages() {
		for _, variant := range db.Variants() {
			for _, channel := range db.Channels() {
				t := &db.Template{Stage: stage, Variant: variant, Channel: channel}
				if text, ok := defaultTemplates[templateKey{stage, variant, channel}]; ok {
					t.Subject = text.subject
					t.Body = text.body
				}
				out = append(out, t)
			}
		}
	}
	return out
}

// SeedTemplates writes the default template set when the table is empty.
// It never touches existing rows.
func SeedTemplates(ctx context.Context, store TemplateStore) error {
	n, err := store.CountTemplates(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return writeDefaults(ctx, store)
}

// ResetTemplates replaces every template with its default.
func ResetTemplates(ctx context.Context, store TemplateStore) error {
	if err := store.DeleteAllTemplates(ctx); err != nil {
		return err
	}
	return writeDefaults(ctx, store)
}

func writeDefaults(ctx context.Context, store TemplateStore) error {
	for _, t := range allTemplates() {
		if err := store.UpsertTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %d/%s/%s: %w", t.Stage, t.Variant, t.Channel, err)
		}
	}
	return nil
}
