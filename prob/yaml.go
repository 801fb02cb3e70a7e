package prob

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type kernelYAML struct {
	LoopNest []struct {
		Iter  string `yaml:"iter"`
		Lower int    `yaml:"lower"`
		Upper int    `yaml:"upper"`
		Step  int    `yaml:"step"`
	} `yaml:"loop_nest"`
	Body []struct {
		Op      string   `yaml:"op"`
		Dst     string   `yaml:"dst"`
		Src     []string `yaml:"src"`
		Latency int      `yaml:"latency"`
		Guard   *struct {
			Reg  string `yaml:"reg"`
			Cond string `yaml:"cond"`
		} `yaml:"guard"`
	} `yaml:"body"`
}

// ParseKernelYAML decodes a kernel description from its YAML form.
func ParseKernelYAML(data []byte) (*Kernel, error) {
	var raw kernelYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode kernel: %w", err)
	}

	k := &Kernel{}
	for _, l := range raw.LoopNest {
		step := l.Step
		if step == 0 {
			step = 1
		}
		k.Space = append(k.Space, Dimension{
			Name:  l.Iter,
			Lower: l.Lower,
			Upper: l.Upper,
			Step:  step,
		})
	}

	for i, b := range raw.Body {
		opcode, err := OpcodeByName(b.Op)
		if err != nil {
			return nil, fmt.Errorf("body op %d: %w", i, err)
		}
		dst, err := ParseOperand(b.Dst)
		if err != nil {
			return nil, fmt.Errorf("body op %d dst: %w", i, err)
		}
		op := Operation{Opcode: opcode, Dst: dst, Latency: b.Latency}
		for j, s := range b.Src {
			src, err := ParseOperand(s)
			if err != nil {
				return nil, fmt.Errorf("body op %d src %d: %w", i, j, err)
			}
			op.Src = append(op.Src, src)
		}
		if b.Guard != nil {
			cond, err := CondByName(b.Guard.Cond)
			if err != nil {
				return nil, fmt.Errorf("body op %d guard: %w", i, err)
			}
			op.Guard = &Guard{Reg: b.Guard.Reg, Cond: cond}
		}
		k.Body = append(k.Body, op)
	}

	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// LoadKernel reads and decodes a kernel description file.
func LoadKernel(path string) (*Kernel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKernelYAML(data)
}
