// Package voice runs one spoken interaction at a time: listen, understand,
// answer, speak.
//
// The Orchestrator owns the session state machine and sequences three external
// collaborators behind small interfaces:
//
//   - Transcriber: starts recording and later returns a transcript
//   - Synthesizer: speaks a response and can be stopped
//   - ConversationalFallback: answers free text when no command matches
//
// Command recognition itself is delegated to package command. The orchestrator
// only decides what the user asked for and produces a confirmation; carrying out
// the command is the caller's job.
//
// # Usage
//
//	orch, err := voice.New(transcriber, synthesizer,
//	    voice.WithFallback(assistant),
//	    voice.WithLogger(log.With("component", "voice")),
//	)
//	if err != nil {
//	    return err
//	}
//
//	changes, unsubscribe := orch.Subscribe(16)
//	defer unsubscribe()
//	go func() {
//	    for c := range changes {
//	        fmt.Printf("%s -> %s\n", c.From, c.To)
//	    }
//	}()
//
//	res, err := orch.Start(ctx, voice.Request{Mode: voice.ModeCommand, Timeout: 10 * time.Second})
//	if err != nil {
//	    // ErrAlreadyInProgress or an invalid request
//	    return err
//	}
//	switch res.Outcome {
//	case voice.OutcomeCommand:
//	    execute(res.Command, res.Params)
//	case voice.OutcomeCancelled:
//	    // user pressed stop
//	}
//
// # Suspension points
//
// Only waiting for the transcript and waiting for speech to finish block. Both
// honour Cancel and the context passed to Start. Classification and parameter
// extraction run synchronously while the session is Processing.
//
// A single Orchestrator never runs two interactions at once. Build one per
// concurrent session; they can share a command.Classifier.
package voice
