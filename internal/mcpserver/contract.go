package mcpserver

// HabitModel explains the data the habit tools return so LLM clients can
// read rates, statuses and heatmap cells correctly.
const HabitModel = `# Habithub Data Model

## Habits

Each user owns one row per habit. A together habit is shared: every member
has their own row, all rows carry the same ` + "`sharedId`" + ` and the
creator's habit id.

` + "`recordStatus`" + ` is the member's participation:

| status   | shown | meaning                                   |
|----------|-------|-------------------------------------------|
| active   | yes   | participating (also used when absent)     |
| invited  | yes   | pending invite, answer with respond_invite |
| rejected | no    | declined; never re-invited                |
| left     | no    | left a together habit; never re-invited   |
| deleted  | no    | personal habit removed                    |

Invite ids starting with ` + "`invited-`" + ` stand for invites that have no
row yet. Pass them to respond_invite as-is.

## Logs

Logs map ` + "`YYYY-MM-DD`" + ` to true (done) or false (failed). A missing
day is unlogged. toggle_log cycles unlogged, done, failed, unlogged.

## Weekly rate

Percentage of done days over the 7 days ending today, counting only days the
frequency expects. ` + "`weekly_count`" + ` habits expect every day.

## Heatmap cells

| status       | meaning                                   |
|--------------|-------------------------------------------|
| solid-green  | done (together: everyone did it)          |
| hollow-green | together: I did it, someone did not       |
| solid-red    | failed                                    |
| hollow-red   | together: I did not, someone else did     |
| empty        | nothing logged                            |
| transparent  | before the habit existed                  |

## Leaderboard

Users are ranked by the mean weekly rate of their active habits. Ties share
a rank and the next rank is skipped (80, 80, 60 ranks 1, 1, 3).
`
