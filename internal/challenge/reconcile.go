package challenge

import (
	"regexp"
	"strconv"
	"strings"
)

// UnknownWinner marca uma reivindicação sem vencedor confiável
const UnknownWinner = "Unknown"

// Normalize prepara nomes de usuário para comparação
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isUnknown(name string) bool {
	n := Normalize(name)
	return n == "" || n == Normalize(UnknownWinner)
}

// scorePatterns em ordem de preferência: hífen é o formato mais comum em placares
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,4})\s*[-–—]\s*(\d{1,4})`),
	regexp.MustCompile(`(\d{1,4})\s*:\s*(\d{1,4})`),
	regexp.MustCompile(`(?i)(\d{1,4})\s*(?:x|to|vs\.?)\s*(\d{1,4})`),
}

// ParseScore extrai um par de placares numéricos de um texto livre ("6-7", "6 : 7", "6 to 7")
func ParseScore(raw string) (a, b int, ok bool) {
	for _, re := range scorePatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA != nil || errB != nil {
			continue
		}
		return a, b, true
	}
	return 0, 0, false
}

// ScoreWinner devolve a identidade com maior placar.
// O primeiro placar pertence à primeira identidade detectada.
func ScoreWinner(raw string, detected []string) (string, bool) {
	a, b, ok := ParseScore(raw)
	if !ok || a == b || len(detected) < 2 {
		return "", false
	}
	if a > b {
		return detected[0], true
	}
	return detected[1], true
}

// CorrectVerdict aplica a regra "placar vale mais que narrativa": se o placar
// identifica um vencedor diferente do declarado, o declarado é corrigido.
func CorrectVerdict(v *VerificationResult) {
	winner, ok := ScoreWinner(v.RawSignals.RawScoreText, v.RawSignals.DetectedIdentities)
	if !ok {
		return
	}
	if Normalize(winner) == Normalize(v.ClaimedWinner) {
		return
	}
	v.RawSignals.OriginalClaim = v.ClaimedWinner
	v.RawSignals.Corrected = true
	v.ClaimedWinner = winner
}

// ScorecardsAgree compara dois scorecards pelo placar
func ScorecardsAgree(a, b Scorecard) bool {
	return a.ScoreA == b.ScoreA && a.ScoreB == b.ScoreB
}

// ClaimsAgree compara os vencedores declarados já normalizados. Unknown nunca concorda.
func ClaimsAgree(a, b VerificationResult) bool {
	if isUnknown(a.ClaimedWinner) || isUnknown(b.ClaimedWinner) {
		return false
	}
	return Normalize(a.ClaimedWinner) == Normalize(b.ClaimedWinner)
}

// scorecardOutcome decide o lado vencedor de um scorecard aceito.
// nil com ok=true significa empate.
func scorecardOutcome(c *Challenge, s Scorecard) (winner *Participant, ok bool) {
	opps := c.FundedOpponents()
	if len(opps) != 1 {
		return nil, false
	}
	switch {
	case s.ScoreA > s.ScoreB:
		return &c.Challenger, true
	case s.ScoreB > s.ScoreA:
		return &opps[0].Participant, true
	}
	return nil, true
}

// corroborated confere se o autor da prova aparece entre as identidades detectadas
func corroborated(p *Participant, detected []string) bool {
	names := []string{Normalize(p.Username)}
	for _, n := range p.PlatformUsernames {
		if n = Normalize(n); n != "" {
			names = append(names, n)
		}
	}
	for _, d := range detected {
		d = Normalize(d)
		if d == "" {
			continue
		}
		for _, n := range names {
			if d == n || (len(n) >= minSubstringMatch && strings.Contains(d, n)) {
				return true
			}
		}
	}
	return false
}
