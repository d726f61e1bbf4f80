package sqlinline

const jobColumns = `id::text, task_type, payload, status, attempts, max_attempts, coalesce(last_error, ''),
    coalesce(locked_by, ''), locked_until, coalesce(lease_token::text, ''), coalesce(dedupe_key, ''), priority, scheduled_for, result, created_at, updated_at`

// QInsertJob inserts nothing when an open job already holds the dedupe key.
const QInsertJob = `--sql 49ee2af5-23fc-4615-973f-5a54724f64cb
insert into jobs (id, task_type, payload, status, attempts, max_attempts, priority, scheduled_for, dedupe_key, created_at, updated_at)
values ($1::uuid, $2::text, $3::jsonb, 'pending', 0, $4::int, $5::int, $6::timestamptz, nullif($7::text, ''), now(), now())
on conflict (dedupe_key) where dedupe_key is not null and status in ('pending', 'processing') do nothing
returning created_at, updated_at;
`

const QSelectOpenJobByKey = `--sql 0b7d52c4-9e31-4a6f-8c2d-51f3e7a9b086
select ` + jobColumns + `
from jobs
where dedupe_key = $1::text
  and status in ('pending', 'processing')
limit 1;
`

// QClaimJob leases the highest priority due job, or one whose lease lapsed.
const QClaimJob = `--sql 452dc393-11c5-4a8d-b17d-123c76a0bbe7
with next_job as (
    select id
    from jobs
    where (status = 'pending' and scheduled_for <= now())
       or (status = 'processing' and locked_until < now())
    order by priority desc, scheduled_for asc, created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update jobs
    set status = 'processing',
        locked_by = $1::text,
        locked_until = now() + make_interval(secs => $2::double precision),
        lease_token = gen_random_uuid(),
        updated_at = now()
    where id in (select id from next_job)
    returning ` + jobColumns + `
)
select * from claimed;
`

const QCompleteJob = `--sql 9586f6dd-9a0a-46cb-a8c3-c280cbe09ca1
update jobs
set status = 'completed',
    result = $3::jsonb,
    attempts = attempts + 1,
    locked_by = null,
    locked_until = null,
    lease_token = null,
    updated_at = now()
where id = $1::uuid
  and lease_token = $2::uuid
  and status = 'processing';
`

// QFailJob reschedules the job when $4 is set, otherwise marks it failed.
const QFailJob = `--sql eb20c146-8a63-4f0f-8183-da1b3d7e490e
update jobs
set status = case when $4::timestamptz is null then 'failed' else 'pending' end,
    scheduled_for = coalesce($4::timestamptz, scheduled_for),
    last_error = $3::text,
    attempts = attempts + 1,
    locked_by = null,
    locked_until = null,
    lease_token = null,
    updated_at = now()
where id = $1::uuid
  and lease_token = $2::uuid
  and status = 'processing';
`

const QExtendJobLease = `--sql 6a4e1f93-2c7b-4d85-b0e6-93d5a8c1f274
update jobs
set locked_until = now() + make_interval(secs => $3::double precision),
    updated_at = now()
where id = $1::uuid
  and lease_token = $2::uuid
  and status = 'processing';
`

const QSelectJob = `--sql 46bac3b0-7355-4ee8-9413-6e5deb8a2a09
select ` + jobColumns + `
from jobs
where id = $1::uuid;
`
