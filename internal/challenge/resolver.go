package challenge

import (
	"context"
	"fmt"
	"strings"
)

// minSubstringMatch evita que nomes curtos casem com qualquer coisa
const minSubstringMatch = 3

// ResolveWinner mapeia o nome canônico do vencedor para um participante com carteira.
// Ordem: username de login exato, username de plataforma (igual ou substring, sem
// ambiguidade), e por fim o diretório de usuários. Sem match, falha com ErrWinnerUnresolved.
func ResolveWinner(ctx context.Context, c *Challenge, name string, dir Directory) (*Participant, error) {
	if isUnknown(name) {
		return nil, fmt.Errorf("%w: no winner claimed", ErrWinnerUnresolved)
	}
	n := Normalize(name)
	participants := c.Participants()

	for _, p := range participants {
		if Normalize(p.Username) == n {
			return p, nil
		}
	}

	if p := matchPlatformUsername(c, participants, n); p != nil {
		return p, nil
	}

	if dir != nil {
		uid, err := dir.ResolveByPlatformUsername(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("directory lookup: %w", err)
		}
		if uid != "" {
			for _, p := range participants {
				if p.UID == uid {
					return p, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: %q does not match any participant", ErrWinnerUnresolved, name)
}

func matchPlatformUsername(c *Challenge, participants []*Participant, n string) *Participant {
	var exact, partial []*Participant
	for _, p := range participants {
		names := platformNames(p, c.Platform)
		matchedExact, matchedPartial := false, false
		for _, pn := range names {
			switch {
			case pn == n:
				matchedExact = true
			case len(n) >= minSubstringMatch && len(pn) >= minSubstringMatch &&
				(strings.Contains(pn, n) || strings.Contains(n, pn)):
				matchedPartial = true
			}
		}
		if matchedExact {
			exact = append(exact, p)
		} else if matchedPartial {
			partial = append(partial, p)
		}
	}
	if len(exact) == 1 {
		return exact[0]
	}
	if len(exact) == 0 && len(partial) == 1 {
		return partial[0]
	}
	return nil
}

// platformNames devolve os nomes normalizados, com a plataforma do desafio primeiro
func platformNames(p *Participant, platform string) []string {
	var out []string
	if v, ok := p.PlatformUsernames[platform]; ok && Normalize(v) != "" {
		out = append(out, Normalize(v))
	}
	for k, v := range p.PlatformUsernames {
		if k == platform || Normalize(v) == "" {
			continue
		}
		out = append(out, Normalize(v))
	}
	return out
}
